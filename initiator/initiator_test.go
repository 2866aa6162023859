package initiator

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanwen/go-mtpd/database"
	"github.com/hanwen/go-mtpd/mtp"
	"github.com/hanwen/go-mtpd/server"
	"github.com/hanwen/go-mtpd/transport"
)

const storageID = 0x00010001

type loopback struct {
	root   string
	client *Client
	dev    *transport.Stream
	db     *database.DB
}

func newLoopback(t *testing.T) *loopback {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "DCIM"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "DCIM", "photo.jpg"), []byte("jpeg bytes"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.txt"), []byte("hello world"), 0644))

	db, err := database.Open(database.Options{FriendlyName: "Loopback"})
	require.NoError(t, err)
	require.NoError(t, db.AddStorage(storageID, root))

	a, b := net.Pipe()
	dev := transport.NewStream(a, nil, nil)
	host := transport.NewStream(b, nil, nil)

	srv := server.New(dev, db, server.Options{
		Manufacturer:  "go-mtpd",
		Model:         "loopback",
		DeviceVersion: "1.0",
		SerialNumber:  "0001",
	})
	srv.AddStorage(server.NewStorage(storageID, root, "Internal storage", 0, false, 0))
	db.SetNotifier(srv)

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background()) }()
	t.Cleanup(func() {
		host.Close()
		assert.NoError(t, <-done)
		db.Close()
	})

	return &loopback{
		root:   root,
		client: New(host, nil),
		dev:    dev,
		db:     db,
	}
}

func (l *loopback) open(t *testing.T) {
	require.NoError(t, l.client.OpenSession())
}

func (l *loopback) find(t *testing.T, parent uint32, name string) uint32 {
	handles, err := l.client.GetObjectHandles(storageID, 0, parent)
	require.NoError(t, err)
	for _, h := range handles {
		var info mtp.ObjectInfo
		require.NoError(t, l.client.GetObjectInfo(h, &info))
		if info.Filename == name {
			return h
		}
	}
	t.Fatalf("%s not found under 0x%x", name, parent)
	return 0
}

func (l *loopback) event(t *testing.T) mtp.Container {
	select {
	case b := <-l.dev.Events():
		ev, err := ReadEvent(bytes.NewReader(b))
		require.NoError(t, err)
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
	}
	return mtp.Container{}
}

func TestDeviceInfo(t *testing.T) {
	l := newLoopback(t)

	var info mtp.DeviceInfo
	require.NoError(t, l.client.GetDeviceInfo(&info))
	assert.Equal(t, "go-mtpd", info.Manufacturer)
	assert.Equal(t, "loopback", info.Model)
	assert.Equal(t, "0001", info.SerialNumber)
	assert.Contains(t, info.MTPExtension, "android.com")
	assert.Contains(t, info.OperationsSupported, uint16(mtp.OC_ANDROID_BEGIN_EDIT_OBJECT))
	assert.Contains(t, info.DevicePropertiesSupported, uint16(mtp.DPC_MTP_DeviceFriendlyName))
	assert.Contains(t, info.PlaybackFormats, uint16(mtp.OFC_MP3))
}

func TestSessionRequired(t *testing.T) {
	l := newLoopback(t)

	_, err := l.client.GetStorageIDs()
	assert.Equal(t, mtp.RCError(mtp.RC_SessionNotOpen), err)

	l.open(t)
	assert.Error(t, l.client.OpenSession())
	require.NoError(t, l.client.CloseSession())

	_, err = l.client.GetStorageIDs()
	assert.Equal(t, mtp.RCError(mtp.RC_SessionNotOpen), err)
}

func TestBrowse(t *testing.T) {
	l := newLoopback(t)
	l.open(t)

	ids, err := l.client.GetStorageIDs()
	require.NoError(t, err)
	assert.Equal(t, []uint32{storageID}, ids)

	var si mtp.StorageInfo
	require.NoError(t, l.client.GetStorageInfo(storageID, &si))
	assert.Equal(t, "Internal storage", si.StorageDescription)
	assert.True(t, si.IsHierarchical())

	n, err := l.client.GetNumObjects(storageID, 0, mtp.AllHandles)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), n)

	dcim := l.find(t, 0, "DCIM")
	photo := l.find(t, dcim, "photo.jpg")

	var info mtp.ObjectInfo
	require.NoError(t, l.client.GetObjectInfo(photo, &info))
	assert.Equal(t, uint16(mtp.OFC_EXIF_JPEG), info.ObjectFormat)
	assert.Equal(t, uint32(10), info.CompressedSize)
	assert.Equal(t, dcim, info.ParentObject)

	var buf bytes.Buffer
	require.NoError(t, l.client.GetObject(photo, &buf))
	assert.Equal(t, "jpeg bytes", buf.String())

	buf.Reset()
	sent, err := l.client.GetPartialObject(photo, &buf, 5, 100)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), sent)
	assert.Equal(t, "bytes", buf.String())

	buf.Reset()
	sent, err = l.client.GetPartialObject64(photo, &buf, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), sent)
	assert.Equal(t, "jpeg", buf.String())

	err = l.client.GetThumb(photo, &buf)
	assert.Equal(t, mtp.RCError(mtp.RC_NoThumbnailPresent), err)

	var missing mtp.ObjectInfo
	err = l.client.GetObjectInfo(0xdead, &missing)
	assert.Equal(t, mtp.RCError(mtp.RC_InvalidObjectHandle), err)
}

func TestUploadAndDelete(t *testing.T) {
	l := newLoopback(t)
	l.open(t)

	content := strings.Repeat("0123456789abcdef", 4096)
	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	info := mtp.ObjectInfo{
		ObjectFormat:     mtp.OFC_Text,
		CompressedSize:   uint32(len(content)),
		Filename:         "upload.txt",
		ModificationDate: mtime,
	}
	st, parent, handle, err := l.client.SendObjectInfo(storageID, 0, &info)
	require.NoError(t, err)
	assert.Equal(t, uint32(storageID), st)
	assert.Equal(t, uint32(0), parent)
	require.NotZero(t, handle)
	require.NoError(t, l.client.SendObject(strings.NewReader(content), int64(len(content))))

	got, err := os.ReadFile(filepath.Join(l.root, "upload.txt"))
	require.NoError(t, err)
	assert.Equal(t, content, string(got))

	var back mtp.ObjectInfo
	require.NoError(t, l.client.GetObjectInfo(handle, &back))
	assert.Equal(t, uint32(len(content)), back.CompressedSize)
	assert.Equal(t, "upload.txt", back.Filename)

	require.NoError(t, l.client.DeleteObject(handle))
	ev := l.event(t)
	assert.Equal(t, uint16(mtp.EC_ObjectRemoved), ev.Code)
	assert.Equal(t, []uint32{handle}, ev.Param)
	assert.NoFileExists(t, filepath.Join(l.root, "upload.txt"))

	err = l.client.GetObjectInfo(handle, &back)
	assert.Equal(t, mtp.RCError(mtp.RC_InvalidObjectHandle), err)
}

func TestFolderMoveCopy(t *testing.T) {
	l := newLoopback(t)
	l.open(t)

	_, _, folder, err := l.client.SendObjectInfo(storageID, 0, &mtp.ObjectInfo{
		ObjectFormat:    mtp.OFC_Association,
		AssociationType: mtp.AT_GenericFolder,
		Filename:        "Backup",
	})
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(l.root, "Backup"))

	readme := l.find(t, 0, "readme.txt")
	copied, err := l.client.CopyObject(readme, storageID, folder)
	require.NoError(t, err)
	assert.NotEqual(t, readme, copied)
	assert.FileExists(t, filepath.Join(l.root, "Backup", "readme.txt"))

	dcim := l.find(t, 0, "DCIM")
	require.NoError(t, l.client.MoveObject(dcim, storageID, folder))
	assert.FileExists(t, filepath.Join(l.root, "Backup", "DCIM", "photo.jpg"))

	children, err := l.client.GetObjectHandles(storageID, 0, folder)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{copied, dcim}, children)

	// A folder cannot move into itself.
	err = l.client.MoveObject(folder, storageID, dcim)
	assert.Equal(t, mtp.RCError(mtp.RC_InvalidParentObject), err)
}

func TestProperties(t *testing.T) {
	l := newLoopback(t)
	l.open(t)

	readme := l.find(t, 0, "readme.txt")

	props, err := l.client.GetObjectPropsSupported(mtp.OFC_Text)
	require.NoError(t, err)
	assert.Contains(t, props, uint16(mtp.OPC_ObjectFileName))

	desc, err := l.client.GetObjectPropDesc(mtp.OPC_ObjectFileName, mtp.OFC_Text)
	require.NoError(t, err)
	assert.Equal(t, uint16(mtp.DTC_STR), desc.DataType)
	assert.True(t, desc.Writable)

	v, err := l.client.GetObjectPropValue(readme, mtp.OPC_ObjectSize, mtp.DTC_UINT64)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), v.Bits)

	require.NoError(t, l.client.SetObjectPropValue(readme, mtp.OPC_ObjectFileName, mtp.DTC_STR, mtp.StrValue("README.md")))
	ev := l.event(t)
	assert.Equal(t, uint16(mtp.EC_ObjectInfoChanged), ev.Code)
	assert.FileExists(t, filepath.Join(l.root, "README.md"))

	elems, err := l.client.GetObjectPropList(readme, 0, mtp.OPC_ObjectFileName, 0, 0)
	require.NoError(t, err)
	require.Len(t, elems, 1)
	assert.Equal(t, "README.md", elems[0].Value.Str)

	_, err = l.client.GetObjectPropList(readme, 0, mtp.AllHandles, 1, 0)
	assert.Equal(t, mtp.RCError(mtp.RC_MTP_Specification_By_Group_Unsupported), err)

	name, err := l.client.GetDevicePropValue(mtp.DPC_MTP_DeviceFriendlyName, mtp.DTC_STR)
	require.NoError(t, err)
	assert.Equal(t, "Loopback", name.Str)

	require.NoError(t, l.client.SetDevicePropValue(mtp.DPC_MTP_DeviceFriendlyName, mtp.DTC_STR, mtp.StrValue("Renamed")))
	ev = l.event(t)
	assert.Equal(t, uint16(mtp.EC_DevicePropChanged), ev.Code)
	assert.Equal(t, []uint32{mtp.DPC_MTP_DeviceFriendlyName}, ev.Param)

	name, err = l.client.GetDevicePropValue(mtp.DPC_MTP_DeviceFriendlyName, mtp.DTC_STR)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", name.Str)

	require.NoError(t, l.client.ResetDevicePropValue(mtp.DPC_MTP_DeviceFriendlyName))
	l.event(t)

	battery, err := l.client.GetDevicePropDesc(mtp.DPC_BatteryLevel)
	require.NoError(t, err)
	assert.Equal(t, uint8(mtp.DPFF_Range), battery.FormFlag)
	assert.False(t, battery.Writable)
}

func TestReferences(t *testing.T) {
	l := newLoopback(t)
	l.open(t)

	readme := l.find(t, 0, "readme.txt")
	dcim := l.find(t, 0, "DCIM")
	photo := l.find(t, dcim, "photo.jpg")

	refs, err := l.client.GetObjectReferences(readme)
	require.NoError(t, err)
	assert.Empty(t, refs)

	require.NoError(t, l.client.SetObjectReferences(readme, []uint32{photo, dcim}))
	refs, err = l.client.GetObjectReferences(readme)
	require.NoError(t, err)
	assert.Equal(t, []uint32{photo, dcim}, refs)
}

func TestEditObject(t *testing.T) {
	l := newLoopback(t)
	l.open(t)

	readme := l.find(t, 0, "readme.txt")
	require.NoError(t, l.client.BeginEditObject(readme))

	n, err := l.client.SendPartialObject(readme, 6, strings.NewReader("gophers!"), 8)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), n)

	v, err := l.client.GetObjectPropValue(readme, mtp.OPC_ObjectSize, mtp.DTC_UINT64)
	require.NoError(t, err)
	assert.Equal(t, uint64(14), v.Bits)

	require.NoError(t, l.client.TruncateObject(readme, 13))
	require.NoError(t, l.client.EndEditObject(readme))

	got, err := os.ReadFile(filepath.Join(l.root, "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello gophers", string(got))

	var info mtp.ObjectInfo
	require.NoError(t, l.client.GetObjectInfo(readme, &info))
	assert.Equal(t, uint32(13), info.CompressedSize)
}

func TestGenericRPC(t *testing.T) {
	l := newLoopback(t)
	l.open(t)

	params, err := l.client.GenericRPC(mtp.OC_GetNumObjects, []uint32{storageID, 0, mtp.AllHandles}, nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint32{2}, params)

	_, err = l.client.GenericRPC(0x1099, nil, nil, nil, 0)
	assert.Equal(t, mtp.RCError(mtp.RC_OperationNotSupported), err)
}

func TestRescanEvents(t *testing.T) {
	l := newLoopback(t)
	l.open(t)

	require.NoError(t, os.WriteFile(filepath.Join(l.root, "new.mp3"), []byte("id3"), 0644))
	require.NoError(t, l.db.Rescan(storageID))

	ev := l.event(t)
	assert.Equal(t, uint16(mtp.EC_ObjectAdded), ev.Code)
	added := ev.Param[0]

	var info mtp.ObjectInfo
	require.NoError(t, l.client.GetObjectInfo(added, &info))
	assert.Equal(t, "new.mp3", info.Filename)
	assert.Equal(t, uint16(mtp.OFC_MP3), info.ObjectFormat)
}
