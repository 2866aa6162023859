// Package server implements the device side of MTP: it reads
// commands from a Transport, runs them against a Database and the
// mounted storages, and answers with data and response containers.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/hanwen/go-mtpd/log"
	"github.com/hanwen/go-mtpd/mtp"
)

// Options configures a Server.
type Options struct {
	// PTP announces a plain PTP responder without the MTP vendor
	// extension.
	PTP bool

	Manufacturer  string
	Model         string
	DeviceVersion string
	SerialNumber  string

	FilePerm os.FileMode
	DirPerm  os.FileMode

	Observer Observer
	Log      *log.Children
}

// Server runs one MTP session loop over a transport.
type Server struct {
	transport Transport
	db        Database
	opts      Options
	observer  Observer
	log       *log.Children

	// mu serializes request handling and storage list changes.
	mu       sync.Mutex
	storages []*Storage

	// eventMu guards the event packet. It is separate from mu so
	// database callbacks raised while a request runs can send events.
	eventMu sync.Mutex
	event   *mtp.EventPacket

	sessionOpen *atomic.Bool
	sessionID   *atomic.Uint32
	lastTID     *atomic.Uint32

	request  *mtp.RequestPacket
	data     *mtp.DataPacket
	response *mtp.ResponsePacket

	// Set once a streamed data phase has been taken off the transport.
	dataPhaseRead bool

	// Set by SendObjectInfo for the following SendObject.
	sendObjectHandle   uint32
	sendObjectFormat   uint16
	sendObjectSize     int64
	sendObjectPath     string
	sendObjectModified time.Time

	edits map[uint32]*ObjectEdit
}

func New(t Transport, db Database, opts Options) *Server {
	if opts.FilePerm == 0 {
		opts.FilePerm = 0644
	}
	if opts.DirPerm == 0 {
		opts.DirPerm = 0755
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Log == nil {
		opts.Log = log.Quiet()
	}
	return &Server{
		transport:   t,
		db:          db,
		opts:        opts,
		observer:    opts.Observer,
		log:         opts.Log,
		event:       mtp.NewEventPacket(),
		sessionOpen: atomic.NewBool(false),
		sessionID:   atomic.NewUint32(0),
		lastTID:     atomic.NewUint32(0),
		request:     mtp.NewRequestPacket(),
		data:        mtp.NewDataPacket(),
		response:    mtp.NewResponsePacket(),
		edits:       map[uint32]*ObjectEdit{},
	}
}

// SessionOpen reports whether an initiator holds a session.
func (s *Server) SessionOpen() bool {
	return s.sessionOpen.Load()
}

// AddStorage mounts a storage and tells the initiator about it.
func (s *Server) AddStorage(st *Storage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storages = append(s.storages, st)
	s.log.MTP.Infof("added storage 0x%08x at %s", st.ID, st.Path)
	s.sendStoreAdded(st.ID)
}

// RemoveStorage unmounts the storage with the given ID, if present.
func (s *Server) RemoveStorage(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, st := range s.storages {
		if st.ID == id {
			s.storages = append(s.storages[:i], s.storages[i+1:]...)
			s.log.MTP.Infof("removed storage 0x%08x", id)
			s.sendStoreRemoved(id)
			return
		}
	}
}

func (s *Server) getStorage(id uint32) *Storage {
	for _, st := range s.storages {
		if st.ID == id {
			return st
		}
	}
	return nil
}

// hasStorage treats 0 and 0xFFFFFFFF as "any storage".
func (s *Server) hasStorage(id uint32) bool {
	if id == 0 || id == mtp.AllHandles {
		return len(s.storages) > 0
	}
	return s.getStorage(id) != nil
}

// hasDataIn lists the operations whose command is followed by a data
// phase from the initiator.
func hasDataIn(op uint16) bool {
	switch op {
	case mtp.OC_SendObjectInfo,
		mtp.OC_MTP_SetObjectReferences,
		mtp.OC_MTP_SetObjectPropValue,
		mtp.OC_SetDevicePropValue:
		return true
	}
	return false
}

// hasStreamedDataIn lists the operations whose data phase the handler
// reads itself, straight into a file.
func hasStreamedDataIn(op uint16) bool {
	return op == mtp.OC_SendObject || op == mtp.OC_ANDROID_SEND_PARTIAL_OBJECT
}

func cancelled(err error) bool {
	return errors.Is(err, mtp.ErrTransactionCancelled)
}

// Run serves transactions until the transport fails or ctx is done.
// Blocking transport reads are not interrupted by ctx; close the
// transport to stop a waiting loop. Open edits are committed before
// Run returns.
func (s *Server) Run(ctx context.Context) error {
	defer s.shutdown()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if err := s.request.Read(s.transport); err != nil {
			if cancelled(err) {
				s.log.MTP.Debug("request read cancelled")
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}

		op := s.request.ContainerCode()
		tid := s.request.TransactionID()
		s.lastTID.Store(tid)
		s.log.MTP.Debugf("request %s tid %d params %v", mtp.OperationName(op), tid, s.request.Params())

		dataIn := hasDataIn(op)
		if dataIn {
			if err := s.data.ReadPacket(s.transport); err != nil {
				if cancelled(err) {
					s.log.MTP.Debugf("%s data phase cancelled", mtp.OperationName(op))
					continue
				}
				return fmt.Errorf("read data for %s: %w", mtp.OperationName(op), err)
			}
		} else {
			s.data.Reset()
		}

		s.dataPhaseRead = false
		rc := s.handleRequest(op, tid)
		s.observer.Transaction(op, rc, tid)

		if hasStreamedDataIn(op) && !s.dataPhaseRead && rc != mtp.RC_TransactionCanceled {
			if err := s.discardData(); err != nil {
				if cancelled(err) {
					continue
				}
				if errors.Is(err, io.EOF) {
					return nil
				}
				return fmt.Errorf("discard data for %s: %w", mtp.OperationName(op), err)
			}
		}

		if rc == mtp.RC_TransactionCanceled {
			s.log.MTP.Debugf("%s tid %d cancelled, no response", mtp.OperationName(op), tid)
			continue
		}

		if !dataIn && s.data.Size() > mtp.HeaderSize {
			s.data.SetContainerCode(op)
			s.data.SetTransactionID(tid)
			if err := s.data.WritePacket(s.transport); err != nil {
				if cancelled(err) {
					continue
				}
				return fmt.Errorf("write data for %s: %w", mtp.OperationName(op), err)
			}
			s.observer.Transferred(int64(s.data.Size() - mtp.HeaderSize))
		}

		s.response.SetTransactionID(tid)
		s.response.SetContainerCode(rc)
		s.log.MTP.Debugf("response %s tid %d params %v", mtp.ResponseName(rc), tid, s.response.Params())
		if err := s.response.Write(s.transport); err != nil {
			if cancelled(err) {
				continue
			}
			return fmt.Errorf("write response for %s: %w", mtp.OperationName(op), err)
		}
	}
}

// handleRequest runs one operation under the server lock and returns
// its response code.
func (s *Server) handleRequest(op uint16, tid uint32) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.response.Reset()

	if s.sendObjectHandle != mtp.InvalidHandle && op != mtp.OC_SendObject {
		s.log.MTP.Warningf("expected SendObject after SendObjectInfo, got %s; dropping object 0x%x",
			mtp.OperationName(op), s.sendObjectHandle)
		s.db.EndSendObject(s.sendObjectPath, s.sendObjectHandle, s.sendObjectFormat, false)
		s.clearSendObject()
	}

	if !s.sessionOpen.Load() && op != mtp.OC_GetDeviceInfo && op != mtp.OC_OpenSession {
		return mtp.RC_SessionNotOpen
	}

	handler := s.handler(op)
	if handler == nil {
		s.log.MTP.Warningf("unsupported operation %s", mtp.OperationName(op))
		return mtp.RC_OperationNotSupported
	}

	err := handler()
	if err == nil {
		if derr := s.data.Err(); derr != nil {
			err = derr
			s.data.Reset()
		}
	}
	rc := mtp.ResponseCode(err)
	if rc == mtp.RC_GeneralError {
		s.log.MTP.Errorf("%s tid %d: %v", mtp.OperationName(op), tid, err)
	} else if err != nil {
		s.log.MTP.Debugf("%s tid %d: %v", mtp.OperationName(op), tid, err)
	}
	if rc != mtp.RC_OK {
		// Only the response goes out for a failed operation.
		s.data.Reset()
	}
	return rc
}

func (s *Server) handler(op uint16) func() error {
	switch op {
	case mtp.OC_GetDeviceInfo:
		return s.doGetDeviceInfo
	case mtp.OC_OpenSession:
		return s.doOpenSession
	case mtp.OC_CloseSession:
		return s.doCloseSession
	case mtp.OC_GetStorageIDs:
		return s.doGetStorageIDs
	case mtp.OC_GetStorageInfo:
		return s.doGetStorageInfo
	case mtp.OC_MTP_GetObjectPropsSupported:
		return s.doGetObjectPropsSupported
	case mtp.OC_GetObjectHandles:
		return s.doGetObjectHandles
	case mtp.OC_GetNumObjects:
		return s.doGetNumObjects
	case mtp.OC_MTP_GetObjectReferences:
		return s.doGetObjectReferences
	case mtp.OC_MTP_SetObjectReferences:
		return s.doSetObjectReferences
	case mtp.OC_MTP_GetObjectPropValue:
		return s.doGetObjectPropValue
	case mtp.OC_MTP_SetObjectPropValue:
		return s.doSetObjectPropValue
	case mtp.OC_GetDevicePropValue:
		return s.doGetDevicePropValue
	case mtp.OC_SetDevicePropValue:
		return s.doSetDevicePropValue
	case mtp.OC_ResetDevicePropValue:
		return s.doResetDevicePropValue
	case mtp.OC_MTP_GetObjPropList:
		return s.doGetObjectPropList
	case mtp.OC_GetObjectInfo:
		return s.doGetObjectInfo
	case mtp.OC_GetObject:
		return s.doGetObject
	case mtp.OC_GetThumb:
		return s.doGetThumb
	case mtp.OC_GetPartialObject, mtp.OC_ANDROID_GET_PARTIAL_OBJECT64:
		return s.doGetPartialObject
	case mtp.OC_SendObjectInfo:
		return s.doSendObjectInfo
	case mtp.OC_SendObject:
		return s.doSendObject
	case mtp.OC_DeleteObject:
		return s.doDeleteObject
	case mtp.OC_MoveObject:
		return s.doMoveObject
	case mtp.OC_CopyObject:
		return s.doCopyObject
	case mtp.OC_MTP_GetObjectPropDesc:
		return s.doGetObjectPropDesc
	case mtp.OC_GetDevicePropDesc:
		return s.doGetDevicePropDesc
	case mtp.OC_ANDROID_SEND_PARTIAL_OBJECT:
		return s.doSendPartialObject
	case mtp.OC_ANDROID_TRUNCATE_OBJECT:
		return s.doTruncateObject
	case mtp.OC_ANDROID_BEGIN_EDIT_OBJECT:
		return s.doBeginEditObject
	case mtp.OC_ANDROID_END_EDIT_OBJECT:
		return s.doEndEditObject
	}
	return nil
}

// discardData reads and drops the data phase of a rejected operation,
// so the next read sees a command again.
func (s *Server) discardData() error {
	s.dataPhaseRead = true
	defer s.data.Reset()

	n, err := s.data.ReadChunk(s.transport)
	if err != nil {
		return err
	}
	remaining := s.receiveRemaining(n, -1)
	if remaining == 0 {
		return nil
	}
	null, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer null.Close()
	dropped, err := s.transport.ReceiveFile(null, 0, remaining)
	s.log.Data.Debugf("dropped 0x%x bytes of data", int64(n-mtp.HeaderSize)+dropped)
	return err
}

func (s *Server) clearSendObject() {
	s.sendObjectHandle = mtp.InvalidHandle
	s.sendObjectFormat = 0
	s.sendObjectSize = 0
	s.sendObjectPath = ""
	s.sendObjectModified = time.Time{}
}

// shutdown commits open edits, drops a pending SendObjectInfo and ends
// the database session.
func (s *Server) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for handle, edit := range s.edits {
		s.commitEdit(edit)
		delete(s.edits, handle)
	}
	if s.sendObjectHandle != mtp.InvalidHandle {
		s.db.EndSendObject(s.sendObjectPath, s.sendObjectHandle, s.sendObjectFormat, false)
		s.clearSendObject()
	}
	if s.sessionOpen.Swap(false) {
		s.db.SessionEnded()
		s.observer.Session(false, s.sessionID.Load())
	}
}
