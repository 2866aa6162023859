package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hanwen/go-mtpd/mtp"
)

// writeDataHeader announces a data phase of length payload bytes whose
// contents the transport sends straight from a file.
func (s *Server) writeDataHeader(length int64) error {
	s.data.SetContainerCode(s.request.ContainerCode())
	s.data.SetTransactionID(s.request.TransactionID())
	return s.data.WriteDataHeader(s.transport, length+mtp.HeaderSize)
}

// transferError keeps cancellation visible and turns every other
// transport failure into a general error.
func transferError(what string, err error) error {
	if cancelled(err) {
		return err
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (s *Server) sendFileRange(f *os.File, offset, length int64) error {
	if err := s.writeDataHeader(length); err != nil {
		return transferError("data header", err)
	}
	if err := s.transport.SendFile(f, offset, length); err != nil {
		return transferError("send file", err)
	}
	s.observer.Transferred(length)
	return nil
}

func (s *Server) doGetObject() error {
	of, err := s.db.GetObjectFilePath(s.request.Parameter(1))
	if err != nil {
		return err
	}
	f, err := os.Open(of.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	return s.sendFileRange(f, 0, fi.Size())
}

func (s *Server) doGetPartialObject() error {
	handle := s.request.Parameter(1)
	var offset, length int64
	if s.request.ContainerCode() == mtp.OC_ANDROID_GET_PARTIAL_OBJECT64 {
		offset = mtp.JoinOffset(s.request.Parameter(2), s.request.Parameter(3))
		length = int64(s.request.Parameter(4))
	} else {
		offset = int64(s.request.Parameter(2))
		length = int64(s.request.Parameter(3))
	}

	of, err := s.db.GetObjectFilePath(handle)
	if err != nil {
		return err
	}
	f, err := os.Open(of.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	size := fi.Size()
	if offset > size {
		return rc(mtp.RC_InvalidParameter)
	}
	if offset+length > size {
		length = size - offset
	}

	if err := s.sendFileRange(f, offset, length); err != nil {
		return err
	}
	s.response.SetParameter(1, uint32(length))
	return nil
}

func validFilename(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsRune(name, '/')
}

// parentDir resolves the directory of a parent handle. 0 and
// 0xFFFFFFFF name the storage root.
func (s *Server) parentDir(st *Storage, parent uint32) (string, uint32, error) {
	if parent == 0 || parent == mtp.AllHandles {
		return st.Path, 0, nil
	}
	of, err := s.db.GetObjectFilePath(parent)
	if err != nil {
		return "", 0, rc(mtp.RC_InvalidParentObject)
	}
	if of.Format != mtp.OFC_Association {
		return "", 0, rc(mtp.RC_InvalidParentObject)
	}
	return of.Path, parent, nil
}

func (s *Server) doSendObjectInfo() error {
	storageID := s.request.Parameter(1)
	st := s.getStorage(storageID)
	if st == nil {
		return rc(mtp.RC_InvalidStorageId)
	}
	dir, parent, err := s.parentDir(st, s.request.Parameter(2))
	if err != nil {
		return err
	}

	var info mtp.ObjectInfo
	if err := mtp.Decode(s.data, &info); err != nil {
		s.log.MTP.Debugf("SendObjectInfo: %v", err)
		return rc(mtp.RC_InvalidParameter)
	}
	if !validFilename(info.Filename) {
		return rc(mtp.RC_MTP_Invalid_Dataset)
	}

	size := int64(info.CompressedSize)
	if info.CompressedSize != mtp.SizeUnknown {
		if uint64(size) > st.FreeSpace() {
			return rc(mtp.RC_StoreFull)
		}
		if st.MaxFileSize > 0 && uint64(size) > st.MaxFileSize {
			return rc(mtp.RC_MTP_Object_Too_Large)
		}
	} else {
		size = -1
	}

	path := filepath.Join(dir, info.Filename)
	format := info.ObjectFormat
	handle, err := s.db.BeginSendObject(path, format, parent, storageID, size, info.ModificationDate)
	if err != nil {
		return err
	}
	if handle == mtp.InvalidHandle {
		return fmt.Errorf("database refused %s", path)
	}

	if format == mtp.OFC_Association {
		if err := os.Mkdir(path, s.opts.DirPerm); err != nil && !errors.Is(err, os.ErrExist) {
			s.db.EndSendObject(path, handle, format, false)
			return err
		}
		s.db.EndSendObject(path, handle, format, true)
	} else {
		s.sendObjectHandle = handle
		s.sendObjectFormat = format
		s.sendObjectSize = size
		s.sendObjectPath = path
		s.sendObjectModified = info.ModificationDate
	}

	s.response.SetParameter(1, storageID)
	s.response.SetParameter(2, parent)
	s.response.SetParameter(3, handle)
	return nil
}

// receiveRemaining computes how much of the current data container is
// still in the transport after a chunk of n bytes, falling back to
// known when the header cannot say. -1 means unknown.
func (s *Server) receiveRemaining(n int, known int64) int64 {
	total := s.data.ContainerLength()
	if total != 0xFFFFFFFF {
		return max(int64(total)-int64(n), 0)
	}
	if known >= 0 {
		return known - int64(n-mtp.HeaderSize)
	}
	return -1
}

func (s *Server) doSendObject() error {
	if s.sendObjectHandle == mtp.InvalidHandle {
		return rc(mtp.RC_NoValidObjectInfo)
	}
	path := s.sendObjectPath
	handle := s.sendObjectHandle
	format := s.sendObjectFormat
	size := s.sendObjectSize
	modified := s.sendObjectModified
	s.clearSendObject()
	defer s.data.Reset()

	err := s.receiveObject(path, size)
	if err == nil && !modified.IsZero() {
		if cerr := os.Chtimes(path, modified, modified); cerr != nil {
			s.log.MTP.Warningf("set mtime of %s: %v", path, cerr)
		}
	}
	s.db.EndSendObject(path, handle, format, err == nil)
	return err
}

func (s *Server) receiveObject(path string, size int64) error {
	s.dataPhaseRead = true
	n, err := s.data.ReadChunk(s.transport)
	if err != nil {
		return transferError("read data", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, s.opts.FilePerm)
	if err != nil {
		return err
	}

	initial := s.data.Payload()
	_, err = f.Write(initial)
	if err == nil {
		if remaining := s.receiveRemaining(n, size); remaining != 0 {
			_, err = s.transport.ReceiveFile(f, int64(len(initial)), remaining)
		}
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return transferError("receive file", err)
	}
	if fi, serr := os.Stat(path); serr == nil {
		s.observer.Transferred(fi.Size())
	}
	return nil
}

func (s *Server) doDeleteObject() error {
	handle := s.request.Parameter(1)
	// The format only filters a delete of everything, which is not
	// supported.
	if handle == mtp.AllHandles {
		if s.request.Parameter(2) != 0 {
			return rc(mtp.RC_SpecificationByFormatUnsupported)
		}
		return rc(mtp.RC_InvalidObjectHandle)
	}
	if handle == 0 {
		return rc(mtp.RC_InvalidObjectHandle)
	}
	if s.edits[handle] != nil {
		return rc(mtp.RC_ObjectWriteProtected)
	}

	of, err := s.db.GetObjectFilePath(handle)
	if err != nil {
		return err
	}
	if err := s.db.BeginDeleteObject(handle); err != nil {
		return err
	}
	err = os.RemoveAll(of.Path)
	s.db.EndDeleteObject(handle, err == nil)
	if err != nil {
		return err
	}
	s.SendObjectRemoved(handle)
	return nil
}

// destination resolves the target of a move or copy and checks it.
func (s *Server) destination(handle uint32) (src ObjectFile, info mtp.ObjectInfo, st *Storage, parent uint32, dst string, err error) {
	st = s.getStorage(s.request.Parameter(2))
	if st == nil {
		err = rc(mtp.RC_InvalidStorageId)
		return
	}
	if src, err = s.db.GetObjectFilePath(handle); err != nil {
		return
	}
	if err = s.db.GetObjectInfo(handle, &info); err != nil {
		return
	}
	var dir string
	if dir, parent, err = s.parentDir(st, s.request.Parameter(3)); err != nil {
		return
	}
	if dir == src.Path || strings.HasPrefix(dir, src.Path+string(filepath.Separator)) {
		err = rc(mtp.RC_InvalidParentObject)
		return
	}
	dst = filepath.Join(dir, filepath.Base(src.Path))
	if _, serr := os.Lstat(dst); serr == nil {
		err = fmt.Errorf("destination %s exists", dst)
		return
	}
	return
}

func (s *Server) doMoveObject() error {
	handle := s.request.Parameter(1)
	if s.edits[handle] != nil {
		return rc(mtp.RC_ObjectWriteProtected)
	}
	src, info, st, parent, dst, err := s.destination(handle)
	if err != nil {
		return err
	}

	sameStorage := info.StorageID == st.ID
	if !sameStorage {
		size, err := treeSize(src.Path)
		if err != nil {
			return err
		}
		if uint64(size) > st.FreeSpace() {
			return rc(mtp.RC_StoreFull)
		}
	}

	if err := s.db.BeginMoveObject(handle, parent, st.ID); err != nil {
		return err
	}
	if sameStorage {
		err = os.Rename(src.Path, dst)
	} else if err = copyTree(src.Path, dst, s.opts.FilePerm, s.opts.DirPerm); err == nil {
		err = os.RemoveAll(src.Path)
	} else {
		os.RemoveAll(dst)
	}
	s.db.EndMoveObject(info.ParentObject, parent, info.StorageID, st.ID, handle, err == nil)
	return err
}

func (s *Server) doCopyObject() error {
	handle := s.request.Parameter(1)
	src, _, st, parent, dst, err := s.destination(handle)
	if err != nil {
		return err
	}
	size, err := treeSize(src.Path)
	if err != nil {
		return err
	}
	if uint64(size) > st.FreeSpace() {
		return rc(mtp.RC_StoreFull)
	}

	newHandle, err := s.db.BeginCopyObject(handle, parent, st.ID)
	if err != nil {
		return err
	}
	err = copyTree(src.Path, dst, s.opts.FilePerm, s.opts.DirPerm)
	if err != nil {
		os.RemoveAll(dst)
	}
	s.db.EndCopyObject(newHandle, err == nil)
	if err != nil {
		return err
	}
	s.response.SetParameter(1, newHandle)
	return nil
}
