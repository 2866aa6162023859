package server

import (
	"go.uber.org/atomic"
	"golang.org/x/sys/unix"

	"github.com/hanwen/go-mtpd/mtp"
)

// Storage is one mounted storage root.
type Storage struct {
	ID           uint32
	Path         string
	Description  string
	ReserveSpace uint64
	Removable    bool
	// 0 means no limit.
	MaxFileSize uint64

	maxCapacity *atomic.Uint64
}

func NewStorage(id uint32, path, description string, reserveSpace uint64, removable bool, maxFileSize uint64) *Storage {
	return &Storage{
		ID:           id,
		Path:         path,
		Description:  description,
		ReserveSpace: reserveSpace,
		Removable:    removable,
		MaxFileSize:  maxFileSize,
		maxCapacity:  atomic.NewUint64(0),
	}
}

func (s *Storage) Type() uint16 {
	if s.Removable {
		return mtp.ST_RemovableRAM
	}
	return mtp.ST_FixedRAM
}

func (s *Storage) FileSystemType() uint16 {
	return mtp.FST_GenericHierarchical
}

func (s *Storage) AccessCapability() uint16 {
	return mtp.AC_ReadWrite
}

// MaxCapacity is the size of the filesystem. It is computed once per
// Storage.
func (s *Storage) MaxCapacity() uint64 {
	if c := s.maxCapacity.Load(); c != 0 {
		return c
	}
	var st unix.Statfs_t
	if err := unix.Statfs(s.Path, &st); err != nil {
		return 0
	}
	c := uint64(st.Blocks) * uint64(st.Bsize)
	s.maxCapacity.Store(c)
	return c
}

// FreeSpace is the space available to unprivileged writers minus the
// reserve, never below 0.
func (s *Storage) FreeSpace() uint64 {
	var st unix.Statfs_t
	if err := unix.Statfs(s.Path, &st); err != nil {
		return 0
	}
	free := uint64(st.Bavail) * uint64(st.Bsize)
	if free <= s.ReserveSpace {
		return 0
	}
	return free - s.ReserveSpace
}

func (s *Storage) Info() mtp.StorageInfo {
	return mtp.StorageInfo{
		StorageType:        s.Type(),
		FilesystemType:     s.FileSystemType(),
		AccessCapability:   s.AccessCapability(),
		MaxCapability:      s.MaxCapacity(),
		FreeSpaceInBytes:   s.FreeSpace(),
		FreeSpaceInImages:  0x40000000,
		StorageDescription: s.Description,
	}
}
