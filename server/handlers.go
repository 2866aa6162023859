package server

import (
	"github.com/hanwen/go-mtpd/mtp"
)

func rc(code uint16) error {
	return mtp.RCError(code)
}

var supportedOperations = []uint16{
	mtp.OC_GetDeviceInfo,
	mtp.OC_OpenSession,
	mtp.OC_CloseSession,
	mtp.OC_GetStorageIDs,
	mtp.OC_GetStorageInfo,
	mtp.OC_GetNumObjects,
	mtp.OC_GetObjectHandles,
	mtp.OC_GetObjectInfo,
	mtp.OC_GetObject,
	mtp.OC_GetThumb,
	mtp.OC_DeleteObject,
	mtp.OC_SendObjectInfo,
	mtp.OC_SendObject,
	mtp.OC_GetDevicePropDesc,
	mtp.OC_GetDevicePropValue,
	mtp.OC_SetDevicePropValue,
	mtp.OC_ResetDevicePropValue,
	mtp.OC_MoveObject,
	mtp.OC_CopyObject,
	mtp.OC_GetPartialObject,
	mtp.OC_MTP_GetObjectPropsSupported,
	mtp.OC_MTP_GetObjectPropDesc,
	mtp.OC_MTP_GetObjectPropValue,
	mtp.OC_MTP_SetObjectPropValue,
	mtp.OC_MTP_GetObjPropList,
	mtp.OC_MTP_GetObjectReferences,
	mtp.OC_MTP_SetObjectReferences,
	mtp.OC_ANDROID_GET_PARTIAL_OBJECT64,
	mtp.OC_ANDROID_SEND_PARTIAL_OBJECT,
	mtp.OC_ANDROID_TRUNCATE_OBJECT,
	mtp.OC_ANDROID_BEGIN_EDIT_OBJECT,
	mtp.OC_ANDROID_END_EDIT_OBJECT,
}

var supportedEvents = []uint16{
	mtp.EC_ObjectAdded,
	mtp.EC_ObjectRemoved,
	mtp.EC_StoreAdded,
	mtp.EC_StoreRemoved,
	mtp.EC_DevicePropChanged,
	mtp.EC_ObjectInfoChanged,
}

func (s *Server) doGetDeviceInfo() error {
	info := mtp.DeviceInfo{
		StandardVersion:           100,
		MTPVendorExtensionID:      mtp.VENDOR_MICROSOFT,
		MTPVersion:                100,
		MTPExtension:              mtp.MTPExtensions,
		FunctionalMode:            0,
		OperationsSupported:       supportedOperations,
		EventsSupported:           supportedEvents,
		DevicePropertiesSupported: s.db.GetSupportedDeviceProperties(),
		CaptureFormats:            s.db.GetSupportedCaptureFormats(),
		PlaybackFormats:           s.db.GetSupportedPlaybackFormats(),
		Manufacturer:              s.opts.Manufacturer,
		Model:                     s.opts.Model,
		DeviceVersion:             s.opts.DeviceVersion,
		SerialNumber:              s.opts.SerialNumber,
	}
	if s.opts.PTP {
		info.MTPVendorExtensionID = 0
		info.MTPExtension = ""
	}
	return mtp.Encode(s.data, &info)
}

func (s *Server) doOpenSession() error {
	if s.sessionOpen.Load() {
		s.response.SetParameter(1, s.sessionID.Load())
		return rc(mtp.RC_SessionAlreadyOpened)
	}
	id := s.request.Parameter(1)
	if id == 0 {
		return rc(mtp.RC_InvalidParameter)
	}
	s.sessionID.Store(id)
	s.sessionOpen.Store(true)
	s.db.SessionStarted()
	s.observer.Session(true, id)
	s.log.MTP.Infof("session 0x%x opened", id)
	return nil
}

func (s *Server) doCloseSession() error {
	id := s.sessionID.Load()
	s.sessionOpen.Store(false)
	s.db.SessionEnded()
	s.observer.Session(false, id)
	s.log.MTP.Infof("session 0x%x closed", id)
	return nil
}

func (s *Server) doGetStorageIDs() error {
	ids := make([]uint32, 0, len(s.storages))
	for _, st := range s.storages {
		ids = append(ids, st.ID)
	}
	s.data.PutAUint32(ids)
	return nil
}

func (s *Server) doGetStorageInfo() error {
	st := s.getStorage(s.request.Parameter(1))
	if st == nil {
		return rc(mtp.RC_InvalidStorageId)
	}
	info := st.Info()
	return mtp.Encode(s.data, &info)
}

func (s *Server) doGetObjectPropsSupported() error {
	format := uint16(s.request.Parameter(1))
	s.data.PutAUint16(s.db.GetSupportedObjectProperties(format))
	return nil
}

// objectFilter decodes the storage, format and parent parameters shared
// by GetObjectHandles and GetNumObjects.
func (s *Server) objectFilter() (storage uint32, format uint16, parent uint32, err error) {
	storage = s.request.Parameter(1)
	format = uint16(s.request.Parameter(2))
	parent = s.request.Parameter(3)
	if !s.hasStorage(storage) {
		return 0, 0, 0, rc(mtp.RC_InvalidStorageId)
	}
	if parent == mtp.AllHandles {
		parent = 0
	}
	return storage, format, parent, nil
}

func (s *Server) doGetObjectHandles() error {
	storage, format, parent, err := s.objectFilter()
	if err != nil {
		return err
	}
	handles, err := s.db.GetObjectList(storage, format, parent)
	if err != nil {
		return err
	}
	s.data.PutAUint32(handles)
	return nil
}

func (s *Server) doGetNumObjects() error {
	storage, format, parent, err := s.objectFilter()
	if err != nil {
		return err
	}
	count, err := s.db.GetNumObjects(storage, format, parent)
	if err != nil {
		return err
	}
	if count < 0 {
		s.response.SetParameter(1, 0)
		return rc(mtp.RC_InvalidObjectHandle)
	}
	s.response.SetParameter(1, uint32(count))
	return nil
}

func (s *Server) doGetObjectReferences() error {
	refs, err := s.db.GetObjectReferences(s.request.Parameter(1))
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		s.data.PutEmptyArray()
		return nil
	}
	s.data.PutAUint32(refs)
	return nil
}

func (s *Server) doSetObjectReferences() error {
	refs, err := s.data.GetAUint32()
	if err != nil {
		return rc(mtp.RC_InvalidParameter)
	}
	return s.db.SetObjectReferences(s.request.Parameter(1), refs)
}

func (s *Server) doGetObjectPropValue() error {
	handle := s.request.Parameter(1)
	property := uint16(s.request.Parameter(2))
	if edit := s.edits[handle]; edit != nil && property == mtp.OPC_ObjectSize {
		s.data.PutUint64(uint64(edit.Size))
		return nil
	}
	return s.db.GetObjectPropertyValue(handle, property, s.data)
}

func (s *Server) doSetObjectPropValue() error {
	handle := s.request.Parameter(1)
	property := uint16(s.request.Parameter(2))
	if err := s.db.SetObjectPropertyValue(handle, property, s.data); err != nil {
		return err
	}
	s.SendObjectInfoChanged(handle)
	return nil
}

func (s *Server) doGetDevicePropValue() error {
	return s.db.GetDevicePropertyValue(uint16(s.request.Parameter(1)), s.data)
}

func (s *Server) doSetDevicePropValue() error {
	property := uint16(s.request.Parameter(1))
	if err := s.db.SetDevicePropertyValue(property, s.data); err != nil {
		return err
	}
	s.SendDevicePropChanged(property)
	return nil
}

func (s *Server) doResetDevicePropValue() error {
	property := uint16(s.request.Parameter(1))
	if err := s.db.ResetDeviceProperty(property); err != nil {
		return err
	}
	s.SendDevicePropChanged(property)
	return nil
}

func (s *Server) doGetObjectPropList() error {
	handle := s.request.Parameter(1)
	format := s.request.Parameter(2)
	property := s.request.Parameter(3)
	group := s.request.Parameter(4)
	depth := s.request.Parameter(5)
	if property == 0 && group == 0 {
		return rc(mtp.RC_ParameterNotSupported)
	}
	return s.db.GetObjectPropertyList(handle, format, property, group, depth, s.data)
}

func (s *Server) doGetObjectInfo() error {
	handle := s.request.Parameter(1)
	var info mtp.ObjectInfo
	if err := s.db.GetObjectInfo(handle, &info); err != nil {
		return err
	}
	if edit := s.edits[handle]; edit != nil {
		info.CompressedSize = mtp.ClampSize(edit.Size)
	}
	return mtp.Encode(s.data, &info)
}

func (s *Server) doGetThumb() error {
	thumb, err := s.db.GetThumbnail(s.request.Parameter(1))
	if err != nil {
		return err
	}
	if len(thumb) == 0 {
		return rc(mtp.RC_NoThumbnailPresent)
	}
	s.data.PutData(thumb)
	return nil
}

func (s *Server) doGetObjectPropDesc() error {
	property := uint16(s.request.Parameter(1))
	format := uint16(s.request.Parameter(2))
	desc := s.db.GetObjectPropertyDesc(property, format)
	if desc == nil {
		return rc(mtp.RC_MTP_ObjectProp_Not_Supported)
	}
	return desc.Write(s.data)
}

func (s *Server) doGetDevicePropDesc() error {
	desc := s.db.GetDevicePropertyDesc(uint16(s.request.Parameter(1)))
	if desc == nil {
		return rc(mtp.RC_DevicePropNotSupported)
	}
	return desc.Write(s.data)
}
