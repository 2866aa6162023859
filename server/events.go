package server

import (
	"github.com/hanwen/go-mtpd/mtp"
)

// sendEvent pushes a one parameter event to the initiator, tagged with
// the transaction of the last request. Nothing is sent without a
// session.
func (s *Server) sendEvent(code uint16, param uint32) {
	if !s.sessionOpen.Load() {
		return
	}

	s.eventMu.Lock()
	defer s.eventMu.Unlock()

	s.event.Reset()
	s.event.SetContainerCode(code)
	s.event.SetTransactionID(s.lastTID.Load())
	s.event.SetParameter(1, param)
	if err := s.event.Write(eventWriter{s.transport}); err != nil {
		s.log.MTP.Warningf("event %s 0x%x: %v", mtp.EventName(code), param, err)
		return
	}
	s.log.MTP.Debugf("event %s 0x%x", mtp.EventName(code), param)
	s.observer.Event(code, param)
}

func (s *Server) SendObjectAdded(handle uint32) {
	s.sendEvent(mtp.EC_ObjectAdded, handle)
}

func (s *Server) SendObjectRemoved(handle uint32) {
	s.sendEvent(mtp.EC_ObjectRemoved, handle)
}

func (s *Server) SendObjectInfoChanged(handle uint32) {
	s.sendEvent(mtp.EC_ObjectInfoChanged, handle)
}

func (s *Server) SendDevicePropChanged(property uint16) {
	s.sendEvent(mtp.EC_DevicePropChanged, uint32(property))
}

func (s *Server) sendStoreAdded(id uint32) {
	s.sendEvent(mtp.EC_StoreAdded, id)
}

func (s *Server) sendStoreRemoved(id uint32) {
	s.sendEvent(mtp.EC_StoreRemoved, id)
}
