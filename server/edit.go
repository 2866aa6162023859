package server

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/hanwen/go-mtpd/mtp"
)

// ObjectEdit is an object opened with BeginEditObject. Size tracks the
// file length as changed by partial writes and truncation.
type ObjectEdit struct {
	Handle uint32
	Path   string
	Size   int64
	Format uint16
	File   *os.File
}

func (s *Server) doBeginEditObject() error {
	handle := s.request.Parameter(1)
	if s.edits[handle] != nil {
		return fmt.Errorf("object 0x%x already open for edit", handle)
	}
	of, err := s.db.GetObjectFilePath(handle)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(of.Path, os.O_WRONLY|os.O_CREATE, s.opts.FilePerm)
	if err != nil {
		return err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return fmt.Errorf("lock %s: %w", of.Path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	s.edits[handle] = &ObjectEdit{
		Handle: handle,
		Path:   of.Path,
		Size:   fi.Size(),
		Format: of.Format,
		File:   f,
	}
	return nil
}

func (s *Server) openEdit(handle uint32) (*ObjectEdit, error) {
	edit := s.edits[handle]
	if edit == nil {
		return nil, fmt.Errorf("object 0x%x not open for edit", handle)
	}
	return edit, nil
}

func (s *Server) doSendPartialObject() error {
	handle := s.request.Parameter(1)
	offset := mtp.JoinOffset(s.request.Parameter(2), s.request.Parameter(3))
	length := int64(s.request.Parameter(4))

	edit, err := s.openEdit(handle)
	if err != nil {
		return err
	}
	if offset > edit.Size {
		return fmt.Errorf("partial write at %d past end %d of 0x%x", offset, edit.Size, handle)
	}
	defer s.data.Reset()

	s.dataPhaseRead = true
	if _, err := s.data.ReadChunk(s.transport); err != nil {
		return transferError("read data", err)
	}
	initial := s.data.Payload()
	if int64(len(initial)) > length {
		initial = initial[:length]
	}
	if _, err := edit.File.WriteAt(initial, offset); err != nil {
		return err
	}
	written := int64(len(initial))
	// Short containers end before length; only count what arrived.
	if rest := length - written; rest > 0 && s.data.ContainerLength() > uint32(s.data.Size()) {
		n, err := s.transport.ReceiveFile(edit.File, offset+written, rest)
		written += n
		if err != nil {
			return transferError("receive file", err)
		}
	}
	s.observer.Transferred(written)

	if end := offset + written; end > edit.Size {
		edit.Size = end
	}
	s.response.SetParameter(1, uint32(written))
	return nil
}

func (s *Server) doTruncateObject() error {
	handle := s.request.Parameter(1)
	offset := mtp.JoinOffset(s.request.Parameter(2), s.request.Parameter(3))
	edit, err := s.openEdit(handle)
	if err != nil {
		return err
	}
	if err := edit.File.Truncate(offset); err != nil {
		return err
	}
	edit.Size = offset
	return nil
}

func (s *Server) doEndEditObject() error {
	handle := s.request.Parameter(1)
	edit, err := s.openEdit(handle)
	if err != nil {
		return err
	}
	s.commitEdit(edit)
	delete(s.edits, handle)
	return nil
}

// commitEdit hands the edited file back to the database and releases
// it.
func (s *Server) commitEdit(edit *ObjectEdit) {
	s.db.EndSendObject(edit.Path, edit.Handle, edit.Format, true)
	if err := unix.Flock(int(edit.File.Fd()), unix.LOCK_UN); err != nil {
		s.log.MTP.Warningf("unlock %s: %v", edit.Path, err)
	}
	if err := edit.File.Close(); err != nil {
		s.log.MTP.Warningf("close %s: %v", edit.Path, err)
	}
}
