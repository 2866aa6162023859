package server

// Observer is told about every transaction and event the server
// handles. Calls are made from the protocol loop and must not block.
type Observer interface {
	Transaction(op, rc uint16, tid uint32)
	Event(code uint16, param uint32)
	Transferred(n int64)
	Session(open bool, id uint32)
}

type nopObserver struct{}

func (nopObserver) Transaction(op, rc uint16, tid uint32) {}
func (nopObserver) Event(code uint16, param uint32)       {}
func (nopObserver) Transferred(n int64)                   {}
func (nopObserver) Session(open bool, id uint32)          {}
