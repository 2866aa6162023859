package mtp

import (
	"errors"
	"fmt"
)

// RCError is an MTP response code carried as an error. Database
// implementations return it to pick the response code of a transaction.
type RCError uint16

func (e RCError) Error() string {
	n, ok := RC_names[int(e)]
	if ok {
		return n
	}
	return fmt.Sprintf("RetCode %x", uint16(e))
}

// SyncError is an error type that indicates lost transaction
// synchronization in the protocol.
type SyncError string

func (s SyncError) Error() string {
	return string(s)
}

var (
	// ErrShortPacket is returned when a container is shorter than its
	// header, or a typed read runs past the end of the payload.
	ErrShortPacket = errors.New("short packet")

	// ErrPacketTooLarge is returned when a packet would grow beyond
	// MaxPacketSize.
	ErrPacketTooLarge = errors.New("packet too large")

	// ErrTransactionCancelled is reported by transports when the host
	// cancels the transaction in flight.
	ErrTransactionCancelled = errors.New("transaction cancelled")
)

// ResponseCode maps an error to the response code sent to the
// initiator. nil is OK, an RCError anywhere in the chain is used as
// is, cancellation maps to TransactionCanceled and everything else is
// a general error.
func ResponseCode(err error) uint16 {
	if err == nil {
		return RC_OK
	}
	var rc RCError
	if errors.As(err, &rc) {
		return uint16(rc)
	}
	if errors.Is(err, ErrTransactionCancelled) {
		return RC_TransactionCanceled
	}
	return RC_GeneralError
}
