// Package initiator is the host side of MTP: it runs transactions
// against a responder over a byte stream. It is used for the loopback
// selftest and for end to end tests of the server.
package initiator

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/hanwen/go-mtpd/log"
	"github.com/hanwen/go-mtpd/mtp"
)

// Catastrophic marks an error after which the connection is out of
// step with the responder. The client refuses further transactions.
type Catastrophic string

func (f Catastrophic) Error() string {
	return string(f)
}

type sessionData struct {
	tid uint32
	sid uint32
}

// header mirrors the 12 byte container header.
type header struct {
	Length        uint32
	Type          uint16
	Code          uint16
	TransactionID uint32
}

// Client talks to one responder. Transactions are serialized.
type Client struct {
	rw  io.ReadWriter
	log *log.ChildLogger

	mu      sync.Mutex
	session *sessionData
	broken  error

	req  *mtp.RequestPacket
	data *mtp.DataPacket
}

// New returns a client on rw, which must preserve container
// boundaries on read, like transport.Stream does.
func New(rw io.ReadWriter, l *log.ChildLogger) *Client {
	if l == nil {
		l = log.Quiet().MTP
	}
	return &Client{
		rw:   rw,
		log:  l,
		req:  mtp.NewRequestPacket(),
		data: mtp.NewDataPacket(),
	}
}

func (c *Client) RunTransactionWithNoParams(code uint16) error {
	var req, rep mtp.Container
	req.Code = code
	return c.RunTransaction(&req, &rep, nil, nil, 0)
}

// Runs a single MTP transaction. dest and src cannot be specified at
// the same time. The request should fill out Code and Param as
// necessary. If the return code is an error, this function returns an
// RCError.
//
// Losing the transaction sequence makes the error Catastrophic.
func (c *Client) RunTransaction(req *mtp.Container, rep *mtp.Container,
	dest io.Writer, src io.Reader, writeSize int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken != nil {
		return c.broken
	}
	if err := c.runTransaction(req, rep, dest, src, writeSize); err != nil {
		if _, ok := err.(mtp.SyncError); ok {
			c.broken = Catastrophic(fmt.Sprintf("fatal error: %s", err))
			return c.broken
		}
		return err
	}
	return nil
}

func (c *Client) runTransaction(req *mtp.Container, rep *mtp.Container,
	dest io.Writer, src io.Reader, writeSize int64) error {
	if c.session != nil {
		req.SessionID = c.session.sid
		req.TransactionID = c.session.tid
		c.session.tid++
	}
	c.log.Debugf("request %s %v", mtp.OperationName(req.Code), req.Param)

	if err := c.sendReq(req); err != nil {
		return err
	}

	if src != nil {
		c.data.Reset()
		c.data.SetContainerCode(req.Code)
		c.data.SetTransactionID(req.TransactionID)
		if err := c.data.WriteDataHeader(c.rw, writeSize+mtp.HeaderSize); err != nil {
			return err
		}
		if _, err := io.CopyN(c.rw, src, writeSize); err != nil {
			return fmt.Errorf("data phase: %w", err)
		}
	}

	var h header
	if err := binary.Read(c.rw, binary.LittleEndian, &h); err != nil {
		return err
	}

	var unexpectedData bool
	if h.Type == mtp.USB_CONTAINER_DATA {
		if dest == nil {
			dest = io.Discard
			unexpectedData = true
			c.log.Debugf("discarding unexpected data 0x%x bytes", h.Length)
		}
		if h.Length == mtp.SizeUnknown || h.Length < mtp.HeaderSize {
			return mtp.SyncError(fmt.Sprintf("data container length 0x%x", h.Length))
		}
		c.log.Debugf("data 0x%x bytes", h.Length)
		if _, err := io.CopyN(dest, c.rw, int64(h.Length)-mtp.HeaderSize); err != nil {
			return fmt.Errorf("data phase: %w", err)
		}
		if err := binary.Read(c.rw, binary.LittleEndian, &h); err != nil {
			return err
		}
	}

	err := c.decodeRep(&h, rep)
	c.log.Debugf("response %s %v", mtp.ResponseName(rep.Code), rep.Param)
	if unexpectedData {
		return mtp.SyncError(fmt.Sprintf("unexpected data for code %s", mtp.OperationName(req.Code)))
	}
	if err != nil {
		return err
	}
	if rep.TransactionID != req.TransactionID {
		return mtp.SyncError(fmt.Sprintf("transaction ID mismatch got %x want %x",
			rep.TransactionID, req.TransactionID))
	}
	rep.SessionID = req.SessionID
	return nil
}

func (c *Client) sendReq(req *mtp.Container) error {
	if len(req.Param) > mtp.MaxParameters {
		return fmt.Errorf("%s: %d parameters", mtp.OperationName(req.Code), len(req.Param))
	}
	c.req.Reset()
	c.req.SetContainerCode(req.Code)
	c.req.SetTransactionID(req.TransactionID)
	for i, p := range req.Param {
		c.req.SetParameter(i+1, p)
	}
	return c.req.Write(c.rw)
}

func (c *Client) decodeRep(h *header, rep *mtp.Container) error {
	if h.Type != mtp.USB_CONTAINER_RESPONSE {
		return mtp.SyncError(fmt.Sprintf("got type %d in response, want CONTAINER_RESPONSE", h.Type))
	}
	if h.Length < mtp.HeaderSize || h.Length > mtp.HeaderSize+4*mtp.MaxParameters {
		return mtp.SyncError(fmt.Sprintf("response length 0x%x", h.Length))
	}

	rep.Code = h.Code
	rep.TransactionID = h.TransactionID
	rest := make([]byte, h.Length-mtp.HeaderSize)
	if _, err := io.ReadFull(c.rw, rest); err != nil {
		return err
	}
	rep.Param = rep.Param[:0]
	for i := 0; i+4 <= len(rest); i += 4 {
		rep.Param = append(rep.Param, binary.LittleEndian.Uint32(rest[i:]))
	}

	if rep.Code != mtp.RC_OK {
		return mtp.RCError(rep.Code)
	}
	return nil
}

// ReadEvent decodes one event container from r.
func ReadEvent(r io.Reader) (mtp.Container, error) {
	ev := mtp.NewEventPacket()
	if err := ev.Read(r); err != nil {
		return mtp.Container{}, err
	}
	return mtp.Container{
		Code:          ev.ContainerCode(),
		TransactionID: ev.TransactionID(),
		Param:         ev.Params(),
	}, nil
}
