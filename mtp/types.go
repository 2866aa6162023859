// Package mtp defines the wire format of the Media Transfer Protocol:
// code tables, containers, the typed data payload codec, property
// descriptors and the standard datasets exchanged with an initiator.
package mtp

import (
	"time"
)

// Container is a decoded command or response: its code, transaction
// and parameters.
type Container struct {
	Code          uint16
	SessionID     uint32
	TransactionID uint32
	Param         []uint32
}

type DeviceInfo struct {
	StandardVersion           uint16
	MTPVendorExtensionID      uint32
	MTPVersion                uint16
	MTPExtension              string
	FunctionalMode            uint16
	OperationsSupported       []uint16
	EventsSupported           []uint16
	DevicePropertiesSupported []uint16
	CaptureFormats            []uint16
	PlaybackFormats           []uint16
	Manufacturer              string
	Model                     string
	DeviceVersion             string
	SerialNumber              string
}

type StorageInfo struct {
	StorageType        uint16
	FilesystemType     uint16
	AccessCapability   uint16
	MaxCapability      uint64
	FreeSpaceInBytes   uint64
	FreeSpaceInImages  uint32
	StorageDescription string
	VolumeLabel        string
}

func (d *StorageInfo) IsHierarchical() bool {
	return d.FilesystemType == FST_GenericHierarchical
}

func (d *StorageInfo) IsRemovable() bool {
	return (d.StorageType == ST_RemovableROM ||
		d.StorageType == ST_RemovableRAM)
}

type ObjectInfo struct {
	StorageID           uint32
	ObjectFormat        uint16
	ProtectionStatus    uint16
	CompressedSize      uint32
	ThumbFormat         uint16
	ThumbCompressedSize uint32
	ThumbPixWidth       uint32
	ThumbPixHeight      uint32
	ImagePixWidth       uint32
	ImagePixHeight      uint32
	ImageBitDepth       uint32
	ParentObject        uint32
	AssociationType     uint16
	AssociationDesc     uint32
	SequenceNumber      uint32
	Filename            string
	CaptureDate         time.Time
	ModificationDate    time.Time
	Keywords            string
}

// Handle values with a fixed meaning.
const (
	InvalidHandle = 0
	// As a parent or storage filter: every object or storage.
	AllHandles = 0xFFFFFFFF
	// Compressed sizes of 4 GiB and beyond are sent as this value.
	SizeUnknown = 0xFFFFFFFF
)

// ClampSize fits an object size into the 32-bit ObjectInfo field.
func ClampSize(size int64) uint32 {
	if size < 0 {
		return 0
	}
	if size >= SizeUnknown {
		return SizeUnknown
	}
	return uint32(size)
}
