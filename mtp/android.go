package mtp

// Android MTP extensions

// Same as GetPartialObject, but with 64 bit offset
const OC_ANDROID_GET_PARTIAL_OBJECT64 = 0x95C1

// Same as GetPartialObject64, but copying host to device
const OC_ANDROID_SEND_PARTIAL_OBJECT = 0x95C2

// Truncates file to 64 bit length
const OC_ANDROID_TRUNCATE_OBJECT = 0x95C3

// Must be called before using SendPartialObject and TruncateObject
const OC_ANDROID_BEGIN_EDIT_OBJECT = 0x95C4

// Called to commit changes made by SendPartialObject and TruncateObject
const OC_ANDROID_END_EDIT_OBJECT = 0x95C5

// MTPExtensions is announced in DeviceInfo when running as an MTP
// responder.
const MTPExtensions = "microsoft.com: 1.0; android.com: 1.0;"

func init() {
	OC_names[0x95C1] = "ANDROID_GET_PARTIAL_OBJECT64"
	OC_names[0x95C2] = "ANDROID_SEND_PARTIAL_OBJECT"
	OC_names[0x95C3] = "ANDROID_TRUNCATE_OBJECT"
	OC_names[0x95C4] = "ANDROID_BEGIN_EDIT_OBJECT"
	OC_names[0x95C5] = "ANDROID_END_EDIT_OBJECT"
}

// SplitOffset and JoinOffset pack 64-bit offsets into two parameters,
// low word first.
func SplitOffset(off int64) (lo, hi uint32) {
	return uint32(uint64(off) & 0xFFFFFFFF), uint32(uint64(off) >> 32)
}

func JoinOffset(lo, hi uint32) int64 {
	return int64(uint64(hi)<<32 | uint64(lo))
}
