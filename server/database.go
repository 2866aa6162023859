package server

import (
	"time"

	"github.com/hanwen/go-mtpd/mtp"
)

// ObjectFile locates the file behind an object handle.
type ObjectFile struct {
	Path   string
	Length int64
	Format uint16
}

// Database is everything the server needs to know about objects,
// storages and properties. Methods that return an error may return an
// mtp.RCError to choose the response code; any other error is reported
// to the initiator as a general error.
//
// Begin/End pairs let the implementation register metadata before the
// filesystem operation and roll it back when succeeded is false.
type Database interface {
	BeginSendObject(path string, format uint16, parent, storage uint32, size int64, modified time.Time) (uint32, error)
	EndSendObject(path string, handle uint32, format uint16, succeeded bool)

	// RescanFile refreshes the metadata of a file changed outside a
	// SendObject transaction.
	RescanFile(path string, handle uint32, format uint16)

	GetObjectList(storage uint32, format uint16, parent uint32) ([]uint32, error)
	// GetNumObjects returns a negative count for an invalid parent.
	GetNumObjects(storage uint32, format uint16, parent uint32) (int, error)

	GetSupportedPlaybackFormats() []uint16
	GetSupportedCaptureFormats() []uint16
	GetSupportedObjectProperties(format uint16) []uint16
	GetSupportedDeviceProperties() []uint16

	// Property values are read from and written to the data phase.
	GetObjectPropertyValue(handle uint32, property uint16, data *mtp.DataPacket) error
	SetObjectPropertyValue(handle uint32, property uint16, data *mtp.DataPacket) error
	GetDevicePropertyValue(property uint16, data *mtp.DataPacket) error
	SetDevicePropertyValue(property uint16, data *mtp.DataPacket) error
	ResetDeviceProperty(property uint16) error
	GetObjectPropertyList(handle, format, property, groupCode, depth uint32, data *mtp.DataPacket) error

	GetObjectInfo(handle uint32, info *mtp.ObjectInfo) error
	// GetThumbnail returns nil when the object has no thumbnail.
	GetThumbnail(handle uint32) ([]byte, error)
	GetObjectFilePath(handle uint32) (ObjectFile, error)

	BeginDeleteObject(handle uint32) error
	EndDeleteObject(handle uint32, succeeded bool)

	GetObjectReferences(handle uint32) ([]uint32, error)
	SetObjectReferences(handle uint32, refs []uint32) error

	// Descriptors are nil for unsupported properties.
	GetObjectPropertyDesc(property, format uint16) *mtp.Property
	GetDevicePropertyDesc(property uint16) *mtp.Property

	BeginMoveObject(handle, newParent, newStorage uint32) error
	EndMoveObject(oldParent, newParent, oldStorage, newStorage, handle uint32, succeeded bool)
	BeginCopyObject(handle, newParent, newStorage uint32) (uint32, error)
	EndCopyObject(handle uint32, succeeded bool)

	SessionStarted()
	SessionEnded()
}

// Notifier receives objects a Database discovers or drops on its own,
// for example during a rescan. The Server implements it.
type Notifier interface {
	SendObjectAdded(handle uint32)
	SendObjectRemoved(handle uint32)
	SendObjectInfoChanged(handle uint32)
}
