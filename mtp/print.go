package mtp

import (
	"encoding/hex"
	"fmt"
	"strings"
)

func getName(m map[int]string, v int) string {
	n, ok := m[v]
	if !ok {
		return fmt.Sprintf("0x%x", v)
	}
	return n
}

func getNames(m map[int]string, vals []uint16) string {
	r := []string{}
	for _, v := range vals {
		r = append(r, getName(m, int(v)))
	}
	return strings.Join(r, ", ")
}

// OperationName, ResponseName and EventName render codes for logs.
func OperationName(code uint16) string { return getName(OC_names, int(code)) }
func ResponseName(code uint16) string  { return getName(RC_names, int(code)) }
func EventName(code uint16) string     { return getName(EC_names, int(code)) }
func FormatName(code uint16) string    { return getName(OFC_names, int(code)) }

func containerName(t uint16) string {
	return getName(USB_names, int(t))
}

func hexDump(data []byte) string {
	return hex.Dump(data)
}

func (i *DeviceInfo) String() string {
	return fmt.Sprintf("stdv: %x, ext: %x, mtp: v%x, mtp ext: %q fmod: %x ops: %s evs: %s "+
		"dprops: %s fmts: %s capfmts: %s manu: %q model: %q devv: %q serno: %q",
		i.StandardVersion,
		i.MTPVendorExtensionID,
		i.MTPVersion,
		i.MTPExtension,
		i.FunctionalMode,
		getNames(OC_names, i.OperationsSupported),
		getNames(EC_names, i.EventsSupported),
		getNames(DPC_names, i.DevicePropertiesSupported),
		getNames(OFC_names, i.PlaybackFormats),
		getNames(OFC_names, i.CaptureFormats),

		i.Manufacturer,
		i.Model,
		i.DeviceVersion,
		i.SerialNumber)
}

func (i *ObjectInfo) String() string {
	return fmt.Sprintf("%q storage 0x%x parent 0x%x format %s size %d modified %s",
		i.Filename, i.StorageID, i.ParentObject,
		FormatName(i.ObjectFormat), i.CompressedSize, FormatTime(i.ModificationDate))
}
