package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/hanwen/go-mtpd/mtp"
)

func container(typ, code uint16, tid uint32, payload []byte) []byte {
	b := make([]byte, mtp.HeaderSize, mtp.HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(b[0:], uint32(mtp.HeaderSize+len(payload)))
	binary.LittleEndian.PutUint16(b[4:], typ)
	binary.LittleEndian.PutUint16(b[6:], code)
	binary.LittleEndian.PutUint32(b[8:], tid)
	return append(b, payload...)
}

func tempFile(t *testing.T, content []byte) *os.File {
	t.Helper()
	name := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(name, content, 0o644))
	f, err := os.OpenFile(name, os.O_RDWR, 0)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func pipeStreams(t *testing.T) (*Stream, *Stream) {
	a, b := net.Pipe()
	sa := NewStream(a, nil, nil)
	sb := NewStream(b, nil, nil)
	t.Cleanup(func() {
		sa.Close()
		sb.Close()
	})
	return sa, sb
}

func TestStreamFramesContainers(t *testing.T) {
	dev, host := pipeStreams(t)

	first := container(mtp.USB_CONTAINER_COMMAND, mtp.OC_OpenSession, 1, []byte{1, 0, 0, 0})
	second := container(mtp.USB_CONTAINER_COMMAND, mtp.OC_GetDeviceInfo, 2, nil)
	go host.Write(append(append([]byte{}, first...), second...))

	buf := make([]byte, 512)
	n, err := dev.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, first, buf[:n])

	n, err = dev.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, second, buf[:n])
}

func TestStreamRequestPacket(t *testing.T) {
	dev, host := pipeStreams(t)

	go func() {
		req := mtp.NewRequestPacket()
		req.SetContainerCode(mtp.OC_GetObject)
		req.SetTransactionID(9)
		req.SetParameter(1, 0x42)
		req.Write(host)
	}()

	req := mtp.NewRequestPacket()
	require.NoError(t, req.Read(dev))
	assert.Equal(t, uint16(mtp.OC_GetObject), req.ContainerCode())
	assert.Equal(t, uint32(9), req.TransactionID())
	assert.Equal(t, []uint32{0x42}, req.Params())
}

func TestStreamReceiveFile(t *testing.T) {
	dev, host := pipeStreams(t)

	payload := bytes.Repeat([]byte("0123456789"), 100)
	go host.Write(container(mtp.USB_CONTAINER_DATA, mtp.OC_SendObject, 3, payload))

	// Read only part of the payload with the header.
	buf := make([]byte, mtp.HeaderSize+10)
	n, err := dev.Read(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	f := tempFile(t, nil)
	n64, err := dev.ReceiveFile(f, 10, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)-10), n64)

	got, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Equal(t, payload[10:], got[10:])
}

func TestStreamReceiveShortContainer(t *testing.T) {
	dev, host := pipeStreams(t)

	go host.Write(container(mtp.USB_CONTAINER_DATA, mtp.OC_ANDROID_SEND_PARTIAL_OBJECT, 5, []byte("abcde")))

	buf := make([]byte, mtp.HeaderSize)
	_, err := dev.Read(buf)
	require.NoError(t, err)

	// More is asked for than the container holds.
	f := tempFile(t, nil)
	n, err := dev.ReceiveFile(f, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	got, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Equal(t, "abcde", string(got))
}

func TestStreamSendFile(t *testing.T) {
	dev, host := pipeStreams(t)

	content := []byte("hello, initiator")
	f := tempFile(t, content)
	errc := make(chan error, 1)
	go func() {
		dp := mtp.NewDataPacket()
		if err := dp.WriteDataHeader(dev, int64(mtp.HeaderSize+5)); err != nil {
			errc <- err
			return
		}
		errc <- dev.SendFile(f, 7, 5)
	}()

	dp := mtp.NewDataPacket()
	require.NoError(t, dp.ReadPacket(host))
	require.NoError(t, <-errc)
	assert.Equal(t, []byte("initi"), dp.Payload())
}

func TestStreamUnframed(t *testing.T) {
	dev, host := pipeStreams(t)

	c := container(mtp.USB_CONTAINER_DATA, mtp.OC_SendObject, 3, nil)
	binary.LittleEndian.PutUint32(c, 0xFFFFFFFF)
	go host.Write(c)

	_, err := dev.Read(make([]byte, 64))
	assert.ErrorIs(t, err, ErrUnframed)
}

func TestStreamEvents(t *testing.T) {
	dev, _ := pipeStreams(t)

	ev := container(mtp.USB_CONTAINER_EVENT, mtp.EC_ObjectAdded, 4, []byte{7, 0, 0, 0})
	require.NoError(t, dev.SendEvent(ev))
	ev[12] = 0

	got := <-dev.Events()
	assert.Equal(t, byte(7), got[12])

	var out bytes.Buffer
	s := NewStream(nopCloser{}, &out, nil)
	assert.Nil(t, s.Events())
	require.NoError(t, s.SendEvent(ev))
	assert.Equal(t, ev, out.Bytes())
}

type nopCloser struct{ io.ReadWriter }

func (nopCloser) Close() error { return nil }

func TestMapError(t *testing.T) {
	err := mapError(&os.PathError{Op: "read", Path: "/dev/mtp_usb", Err: unix.ECANCELED})
	assert.ErrorIs(t, err, mtp.ErrTransactionCancelled)
	assert.Equal(t, uint16(mtp.RC_TransactionCanceled), mtp.ResponseCode(err))

	other := errors.New("boom")
	assert.Equal(t, other, mapError(other))
	assert.Nil(t, mapError(nil))
}

func TestFileReceive(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()

	f := NewFile(r, nil, 0, nil)
	defer f.Close()

	payload := bytes.Repeat([]byte{0xab}, 300)
	_, err = w.Write(payload)
	require.NoError(t, err)

	dst := tempFile(t, nil)
	n, err := f.ReceiveFile(dst, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)
	// The rest ends with a short read.
	n, err = f.ReceiveFile(dst, 100, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(200), n)

	got, err := os.ReadFile(dst.Name())
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFileSend(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	f := NewFile(w, nil, 0, nil)
	defer f.Close()

	src := tempFile(t, []byte("abcdefgh"))
	require.NoError(t, f.SendFile(src, 2, 4))

	buf := make([]byte, 16)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "cdef", string(buf[:n]))

	// Without an event device events are dropped.
	assert.NoError(t, f.SendEvent([]byte{1, 2, 3}))
}

func TestFileReceiveShortPacket(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()

	f := NewFile(r, nil, 0, nil)
	defer f.Close()

	_, err = w.Write([]byte("short"))
	require.NoError(t, err)

	dst := tempFile(t, nil)
	n, err := f.ReceiveFile(dst, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestFileSendZeroLengthPacketError(t *testing.T) {
	// Writes to a read-only file fail, including the zero length
	// packet that ends an empty transfer on a packet boundary.
	ro, err := os.Open(tempFile(t, nil).Name())
	require.NoError(t, err)

	f := NewFile(ro, nil, 4, nil)
	defer f.Close()

	src := tempFile(t, nil)
	assert.Error(t, f.SendFile(src, 0, 0))
}
