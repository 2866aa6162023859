package server

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hanwen/go-mtpd/mtp"
)

// chunk is one scripted transport read. A non-nil err is returned
// instead of data.
type chunk struct {
	data []byte
	err  error
}

// fakeTransport replays scripted reads and records every write. Each
// Write call is one container, as on a bulk endpoint.
type fakeTransport struct {
	in     []chunk
	out    [][]byte
	events [][]byte
	// File payloads, also recorded in out.
	sent [][]byte

	sendErr error
}

func (t *fakeTransport) queue(data ...[]byte) {
	for _, d := range data {
		t.in = append(t.in, chunk{data: d})
	}
}

func (t *fakeTransport) queueErr(err error) {
	t.in = append(t.in, chunk{err: err})
}

func (t *fakeTransport) next() (chunk, bool) {
	if len(t.in) == 0 {
		return chunk{}, false
	}
	c := t.in[0]
	t.in = t.in[1:]
	return c, true
}

func (t *fakeTransport) Read(p []byte) (int, error) {
	c, ok := t.next()
	if !ok {
		return 0, io.EOF
	}
	if c.err != nil {
		return 0, c.err
	}
	if len(c.data) > len(p) {
		return 0, fmt.Errorf("scripted chunk of %d bytes does not fit %d", len(c.data), len(p))
	}
	return copy(p, c.data), nil
}

func (t *fakeTransport) Write(p []byte) (int, error) {
	t.out = append(t.out, bytes.Clone(p))
	return len(p), nil
}

func (t *fakeTransport) SendFile(f *os.File, offset, length int64) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return err
	}
	t.out = append(t.out, buf)
	t.sent = append(t.sent, buf)
	return nil
}

func (t *fakeTransport) ReceiveFile(f *os.File, offset, length int64) (int64, error) {
	c, ok := t.next()
	if !ok {
		return 0, io.ErrUnexpectedEOF
	}
	if c.err != nil {
		return 0, c.err
	}
	// A shorter chunk is a container that ended early.
	if length >= 0 && int64(len(c.data)) > length {
		return 0, fmt.Errorf("got %d bytes, want at most %d", len(c.data), length)
	}
	n, err := f.WriteAt(c.data, offset)
	return int64(n), err
}

func (t *fakeTransport) SendEvent(p []byte) error {
	t.events = append(t.events, bytes.Clone(p))
	return nil
}

// response is a decoded response container.
type response struct {
	code   uint16
	tid    uint32
	params []uint32
}

func (t *fakeTransport) responses(tb testing.TB) []response {
	var r []response
	for _, b := range t.out {
		if len(b) < mtp.HeaderSize || containerType(b) != mtp.USB_CONTAINER_RESPONSE {
			continue
		}
		p := mtp.NewResponsePacket()
		require.NoError(tb, p.Read(bytes.NewReader(b)))
		r = append(r, response{p.ContainerCode(), p.TransactionID(), p.Params()})
	}
	return r
}

// lastResponse returns the final response written.
func (t *fakeTransport) lastResponse(tb testing.TB) response {
	r := t.responses(tb)
	require.NotEmpty(tb, r)
	return r[len(r)-1]
}

// dataPackets returns the data containers written in one piece.
func (t *fakeTransport) dataPackets(tb testing.TB) []*mtp.DataPacket {
	var r []*mtp.DataPacket
	for _, b := range t.out {
		if len(b) <= mtp.HeaderSize || containerType(b) != mtp.USB_CONTAINER_DATA {
			continue
		}
		d := mtp.NewDataPacket()
		require.NoError(tb, d.ReadPacket(bytes.NewReader(b)))
		r = append(r, d)
	}
	return r
}

func containerType(b []byte) uint16 {
	return uint16(b[4]) | uint16(b[5])<<8
}

func command(op uint16, tid uint32, params ...uint32) []byte {
	p := mtp.NewRequestPacket()
	p.SetContainerCode(op)
	p.SetTransactionID(tid)
	for i, v := range params {
		p.SetParameter(i+1, v)
	}
	var b bytes.Buffer
	if err := p.Write(&b); err != nil {
		panic(err)
	}
	return b.Bytes()
}

func dataContainer(op uint16, tid uint32, fill func(d *mtp.DataPacket)) []byte {
	d := mtp.NewDataPacket()
	d.SetContainerCode(op)
	d.SetTransactionID(tid)
	fill(d)
	var b bytes.Buffer
	if err := d.WritePacket(&b); err != nil {
		panic(err)
	}
	return b.Bytes()
}

type endCall struct {
	path   string
	handle uint32
	format uint16
	ok     bool
}

type fakeObject struct {
	path    string
	format  uint16
	parent  uint32
	storage uint32
}

// fakeDB keeps objects in a map and records the calls the server
// makes.
type fakeDB struct {
	roots   map[uint32]string
	objects map[uint32]*fakeObject
	next    uint32
	refs    map[uint32][]uint32

	friendlyName string

	ended     []endCall
	deleted   []uint32
	started   int
	stopped   int
	copyEnded []bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		roots:        map[uint32]string{},
		objects:      map[uint32]*fakeObject{},
		refs:         map[uint32][]uint32{},
		friendlyName: "fake",
	}
}

// add registers an existing file or directory.
func (db *fakeDB) add(path string, format uint16, parent, storage uint32) uint32 {
	db.next++
	db.objects[db.next] = &fakeObject{path, format, parent, storage}
	return db.next
}

func (db *fakeDB) dir(storage, parent uint32) string {
	if parent == 0 {
		return db.roots[storage]
	}
	return db.objects[parent].path
}

func (db *fakeDB) BeginSendObject(path string, format uint16, parent, storage uint32, size int64, modified time.Time) (uint32, error) {
	return db.add(path, format, parent, storage), nil
}

func (db *fakeDB) EndSendObject(path string, handle uint32, format uint16, succeeded bool) {
	db.ended = append(db.ended, endCall{path, handle, format, succeeded})
	if !succeeded {
		delete(db.objects, handle)
	}
}

func (db *fakeDB) RescanFile(path string, handle uint32, format uint16) {}

func (db *fakeDB) match(storage uint32, format uint16, parent uint32) []uint32 {
	var r []uint32
	for h, o := range db.objects {
		if storage != 0 && storage != mtp.AllHandles && o.storage != storage {
			continue
		}
		if format != 0 && o.format != format {
			continue
		}
		if o.parent != parent {
			continue
		}
		r = append(r, h)
	}
	sort.Slice(r, func(i, j int) bool { return r[i] < r[j] })
	return r
}

func (db *fakeDB) GetObjectList(storage uint32, format uint16, parent uint32) ([]uint32, error) {
	return db.match(storage, format, parent), nil
}

func (db *fakeDB) GetNumObjects(storage uint32, format uint16, parent uint32) (int, error) {
	if parent != 0 && db.objects[parent] == nil {
		return -1, nil
	}
	return len(db.match(storage, format, parent)), nil
}

func (db *fakeDB) GetSupportedPlaybackFormats() []uint16 {
	return []uint16{mtp.OFC_Undefined, mtp.OFC_Association, mtp.OFC_Text}
}

func (db *fakeDB) GetSupportedCaptureFormats() []uint16 { return nil }

func (db *fakeDB) GetSupportedObjectProperties(format uint16) []uint16 {
	return []uint16{mtp.OPC_ObjectFileName, mtp.OPC_ObjectSize}
}

func (db *fakeDB) GetSupportedDeviceProperties() []uint16 {
	return []uint16{mtp.DPC_MTP_DeviceFriendlyName}
}

func (db *fakeDB) object(handle uint32) (*fakeObject, error) {
	o := db.objects[handle]
	if o == nil {
		return nil, mtp.RCError(mtp.RC_InvalidObjectHandle)
	}
	return o, nil
}

func (db *fakeDB) GetObjectPropertyValue(handle uint32, property uint16, data *mtp.DataPacket) error {
	o, err := db.object(handle)
	if err != nil {
		return err
	}
	switch property {
	case mtp.OPC_ObjectFileName:
		data.PutString(filepath.Base(o.path))
	case mtp.OPC_ObjectSize:
		fi, err := os.Stat(o.path)
		if err != nil {
			return err
		}
		data.PutUint64(uint64(fi.Size()))
	default:
		return mtp.RCError(mtp.RC_MTP_ObjectProp_Not_Supported)
	}
	return nil
}

func (db *fakeDB) SetObjectPropertyValue(handle uint32, property uint16, data *mtp.DataPacket) error {
	if _, err := db.object(handle); err != nil {
		return err
	}
	return mtp.RCError(mtp.RC_AccessDenied)
}

func (db *fakeDB) GetDevicePropertyValue(property uint16, data *mtp.DataPacket) error {
	if property != mtp.DPC_MTP_DeviceFriendlyName {
		return mtp.RCError(mtp.RC_DevicePropNotSupported)
	}
	data.PutString(db.friendlyName)
	return nil
}

func (db *fakeDB) SetDevicePropertyValue(property uint16, data *mtp.DataPacket) error {
	if property != mtp.DPC_MTP_DeviceFriendlyName {
		return mtp.RCError(mtp.RC_DevicePropNotSupported)
	}
	s, err := data.GetString()
	if err != nil {
		return mtp.RCError(mtp.RC_InvalidDevicePropValue)
	}
	db.friendlyName = s
	return nil
}

func (db *fakeDB) ResetDeviceProperty(property uint16) error {
	db.friendlyName = "fake"
	return nil
}

func (db *fakeDB) GetObjectPropertyList(handle, format, property, groupCode, depth uint32, data *mtp.DataPacket) error {
	data.PutUint32(0)
	return nil
}

func (db *fakeDB) GetObjectInfo(handle uint32, info *mtp.ObjectInfo) error {
	o, err := db.object(handle)
	if err != nil {
		return err
	}
	fi, err := os.Stat(o.path)
	if err != nil {
		return err
	}
	*info = mtp.ObjectInfo{
		StorageID:        o.storage,
		ObjectFormat:     o.format,
		CompressedSize:   mtp.ClampSize(fi.Size()),
		ParentObject:     o.parent,
		Filename:         filepath.Base(o.path),
		ModificationDate: fi.ModTime(),
	}
	return nil
}

func (db *fakeDB) GetThumbnail(handle uint32) ([]byte, error) {
	_, err := db.object(handle)
	return nil, err
}

func (db *fakeDB) GetObjectFilePath(handle uint32) (ObjectFile, error) {
	o, err := db.object(handle)
	if err != nil {
		return ObjectFile{}, err
	}
	of := ObjectFile{Path: o.path, Format: o.format}
	if fi, err := os.Stat(o.path); err == nil {
		of.Length = fi.Size()
	}
	return of, nil
}

func (db *fakeDB) BeginDeleteObject(handle uint32) error {
	_, err := db.object(handle)
	return err
}

func (db *fakeDB) EndDeleteObject(handle uint32, succeeded bool) {
	if succeeded {
		delete(db.objects, handle)
		db.deleted = append(db.deleted, handle)
	}
}

func (db *fakeDB) GetObjectReferences(handle uint32) ([]uint32, error) {
	if _, err := db.object(handle); err != nil {
		return nil, err
	}
	return db.refs[handle], nil
}

func (db *fakeDB) SetObjectReferences(handle uint32, refs []uint32) error {
	if _, err := db.object(handle); err != nil {
		return err
	}
	db.refs[handle] = refs
	return nil
}

func (db *fakeDB) GetObjectPropertyDesc(property, format uint16) *mtp.Property {
	if property != mtp.OPC_ObjectFileName {
		return nil
	}
	return mtp.NewProperty(property, mtp.DTC_STR, true)
}

func (db *fakeDB) GetDevicePropertyDesc(property uint16) *mtp.Property {
	if property != mtp.DPC_MTP_DeviceFriendlyName {
		return nil
	}
	p := mtp.NewProperty(property, mtp.DTC_STR, true)
	p.Default = mtp.StrValue("fake")
	p.Current = mtp.StrValue(db.friendlyName)
	return p
}

func (db *fakeDB) BeginMoveObject(handle, newParent, newStorage uint32) error {
	_, err := db.object(handle)
	return err
}

func (db *fakeDB) EndMoveObject(oldParent, newParent, oldStorage, newStorage, handle uint32, succeeded bool) {
	if !succeeded {
		return
	}
	o := db.objects[handle]
	o.path = filepath.Join(db.dir(newStorage, newParent), filepath.Base(o.path))
	o.parent = newParent
	o.storage = newStorage
}

func (db *fakeDB) BeginCopyObject(handle, newParent, newStorage uint32) (uint32, error) {
	o, err := db.object(handle)
	if err != nil {
		return 0, err
	}
	path := filepath.Join(db.dir(newStorage, newParent), filepath.Base(o.path))
	return db.add(path, o.format, newParent, newStorage), nil
}

func (db *fakeDB) EndCopyObject(handle uint32, succeeded bool) {
	db.copyEnded = append(db.copyEnded, succeeded)
	if !succeeded {
		delete(db.objects, handle)
	}
}

func (db *fakeDB) SessionStarted() { db.started++ }
func (db *fakeDB) SessionEnded()   { db.stopped++ }
