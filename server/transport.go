package server

import (
	"io"
	"os"
)

// Transport moves containers and file contents between the server and
// the initiator. Reads and writes carry whole containers. When the
// initiator cancels, calls return an error matching
// mtp.ErrTransactionCancelled.
type Transport interface {
	io.Reader
	io.Writer

	// SendFile writes length bytes of f starting at offset as the
	// payload of a data container whose header was already sent.
	SendFile(f *os.File, offset, length int64) error

	// ReceiveFile stores the rest of an incoming data container into f
	// at offset and returns how many bytes it stored. A length of -1
	// reads until the container ends with a short packet. A container
	// shorter than length ends the copy early without an error.
	ReceiveFile(f *os.File, offset, length int64) (int64, error)

	// SendEvent writes one event container on the interrupt channel.
	SendEvent(p []byte) error
}

type eventWriter struct {
	t Transport
}

func (w eventWriter) Write(p []byte) (int, error) {
	if err := w.t.SendEvent(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
