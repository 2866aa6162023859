package initiator

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/hanwen/go-mtpd/mtp"
)

// OpenSession opens a session, which is necessary for any command that
// queries or modifies storage. It is an error to open a session
// twice.
func (c *Client) OpenSession() error {
	if c.SessionID() != 0 {
		return fmt.Errorf("session already open")
	}
	var req, rep mtp.Container
	req.Code = mtp.OC_OpenSession

	// avoid 0xFFFFFFFF and 0x00000000 for session IDs.
	sid := uint32(rand.Int31()) | 1
	req.Param = []uint32{sid}
	if err := c.RunTransaction(&req, &rep, nil, nil, 0); err != nil {
		return err
	}

	c.mu.Lock()
	c.session = &sessionData{
		tid: 1,
		sid: sid,
	}
	c.mu.Unlock()
	return nil
}

// SessionID returns the open session, or 0.
func (c *Client) SessionID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return 0
	}
	return c.session.sid
}

// Closes a session.
func (c *Client) CloseSession() error {
	var req, rep mtp.Container
	req.Code = mtp.OC_CloseSession
	err := c.RunTransaction(&req, &rep, nil, nil, 0)
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	return err
}

// GenericRPC runs any operation. The response parameters are returned
// also when the response code is an error.
func (c *Client) GenericRPC(code uint16, params []uint32, dest io.Writer, src io.Reader, size int64) ([]uint32, error) {
	req := mtp.Container{Code: code, Param: params}
	var rep mtp.Container
	err := c.RunTransaction(&req, &rep, dest, src, size)
	return rep.Param, err
}

// getData runs a transaction that returns a data phase.
func (c *Client) getData(code uint16, params ...uint32) (*mtp.DataPacket, []uint32, error) {
	req := mtp.Container{Code: code, Param: params}
	var rep mtp.Container
	data := mtp.NewDataPacket()
	if err := c.RunTransaction(&req, &rep, data, nil, 0); err != nil {
		return nil, rep.Param, err
	}
	return data, rep.Param, nil
}

// putData runs a transaction with a data phase built by fill.
func (c *Client) putData(code uint16, params []uint32, fill func(*mtp.DataPacket) error) ([]uint32, error) {
	data := mtp.NewDataPacket()
	if err := fill(data); err != nil {
		return nil, err
	}
	if err := data.Err(); err != nil {
		return nil, err
	}
	req := mtp.Container{Code: code, Param: params}
	var rep mtp.Container
	err := c.RunTransaction(&req, &rep, nil, data, int64(data.Remaining()))
	return rep.Param, err
}

func (c *Client) GetDeviceInfo(info *mtp.DeviceInfo) error {
	data, _, err := c.getData(mtp.OC_GetDeviceInfo)
	if err != nil {
		return err
	}
	return mtp.Decode(data, info)
}

func (c *Client) GetStorageIDs() ([]uint32, error) {
	data, _, err := c.getData(mtp.OC_GetStorageIDs)
	if err != nil {
		return nil, err
	}
	return data.GetAUint32()
}

func (c *Client) GetStorageInfo(id uint32, info *mtp.StorageInfo) error {
	data, _, err := c.getData(mtp.OC_GetStorageInfo, id)
	if err != nil {
		return err
	}
	return mtp.Decode(data, info)
}

func (c *Client) GetObjectHandles(storageID uint32, format uint16, parent uint32) ([]uint32, error) {
	data, _, err := c.getData(mtp.OC_GetObjectHandles, storageID, uint32(format), parent)
	if err != nil {
		return nil, err
	}
	return data.GetAUint32()
}

func (c *Client) GetNumObjects(storageID uint32, format uint16, parent uint32) (uint32, error) {
	var req, rep mtp.Container
	req.Code = mtp.OC_GetNumObjects
	req.Param = []uint32{storageID, uint32(format), parent}
	if err := c.RunTransaction(&req, &rep, nil, nil, 0); err != nil {
		return 0, err
	}
	if len(rep.Param) == 0 {
		return 0, fmt.Errorf("GetNumObjects: no count in response")
	}
	return rep.Param[0], nil
}

func (c *Client) GetObjectInfo(handle uint32, info *mtp.ObjectInfo) error {
	data, _, err := c.getData(mtp.OC_GetObjectInfo, handle)
	if err != nil {
		return err
	}
	return mtp.Decode(data, info)
}

func (c *Client) GetObject(handle uint32, w io.Writer) error {
	var req, rep mtp.Container
	req.Code = mtp.OC_GetObject
	req.Param = []uint32{handle}
	return c.RunTransaction(&req, &rep, w, nil, 0)
}

func (c *Client) GetThumb(handle uint32, w io.Writer) error {
	var req, rep mtp.Container
	req.Code = mtp.OC_GetThumb
	req.Param = []uint32{handle}
	return c.RunTransaction(&req, &rep, w, nil, 0)
}

// GetPartialObject copies up to size bytes from offset into w and
// returns the count the responder sent.
func (c *Client) GetPartialObject(handle uint32, w io.Writer, offset, size uint32) (uint32, error) {
	var req, rep mtp.Container
	req.Code = mtp.OC_GetPartialObject
	req.Param = []uint32{handle, offset, size}
	if err := c.RunTransaction(&req, &rep, w, nil, 0); err != nil {
		return 0, err
	}
	return firstParam(rep), nil
}

// GetPartialObject64 is GetPartialObject with a 64 bit offset.
func (c *Client) GetPartialObject64(handle uint32, w io.Writer, offset int64, size uint32) (uint32, error) {
	lo, hi := mtp.SplitOffset(offset)
	var req, rep mtp.Container
	req.Code = mtp.OC_ANDROID_GET_PARTIAL_OBJECT64
	req.Param = []uint32{handle, lo, hi, size}
	if err := c.RunTransaction(&req, &rep, w, nil, 0); err != nil {
		return 0, err
	}
	return firstParam(rep), nil
}

func firstParam(rep mtp.Container) uint32 {
	if len(rep.Param) == 0 {
		return 0
	}
	return rep.Param[0]
}

func (c *Client) DeleteObject(handle uint32) error {
	var req, rep mtp.Container
	req.Code = mtp.OC_DeleteObject
	req.Param = []uint32{handle, 0x0}
	return c.RunTransaction(&req, &rep, nil, nil, 0)
}

// SendObjectInfo announces an object. It returns where the responder
// will store it.
func (c *Client) SendObjectInfo(wantStorageID, wantParent uint32, info *mtp.ObjectInfo) (storageID, parent, handle uint32, err error) {
	params, err := c.putData(mtp.OC_SendObjectInfo, []uint32{wantStorageID, wantParent},
		func(d *mtp.DataPacket) error { return mtp.Encode(d, info) })
	if err != nil {
		return 0, 0, 0, err
	}
	if len(params) < 3 {
		return 0, 0, 0, fmt.Errorf("SendObjectInfo: got %d response parameters", len(params))
	}
	return params[0], params[1], params[2], nil
}

func (c *Client) SendObject(r io.Reader, size int64) error {
	var req, rep mtp.Container
	req.Code = mtp.OC_SendObject
	return c.RunTransaction(&req, &rep, nil, r, size)
}

func (c *Client) MoveObject(handle, storageID, parent uint32) error {
	var req, rep mtp.Container
	req.Code = mtp.OC_MoveObject
	req.Param = []uint32{handle, storageID, parent}
	return c.RunTransaction(&req, &rep, nil, nil, 0)
}

// CopyObject returns the handle of the copy.
func (c *Client) CopyObject(handle, storageID, parent uint32) (uint32, error) {
	var req, rep mtp.Container
	req.Code = mtp.OC_CopyObject
	req.Param = []uint32{handle, storageID, parent}
	if err := c.RunTransaction(&req, &rep, nil, nil, 0); err != nil {
		return 0, err
	}
	return firstParam(rep), nil
}

func (c *Client) GetObjectReferences(handle uint32) ([]uint32, error) {
	data, _, err := c.getData(mtp.OC_MTP_GetObjectReferences, handle)
	if err != nil {
		return nil, err
	}
	return data.GetAUint32()
}

func (c *Client) SetObjectReferences(handle uint32, refs []uint32) error {
	_, err := c.putData(mtp.OC_MTP_SetObjectReferences, []uint32{handle},
		func(d *mtp.DataPacket) error {
			d.PutAUint32(refs)
			return nil
		})
	return err
}

func (c *Client) GetObjectPropsSupported(format uint16) ([]uint16, error) {
	data, _, err := c.getData(mtp.OC_MTP_GetObjectPropsSupported, uint32(format))
	if err != nil {
		return nil, err
	}
	return data.GetAUint16()
}

func (c *Client) GetObjectPropDesc(property, format uint16) (*mtp.Property, error) {
	data, _, err := c.getData(mtp.OC_MTP_GetObjectPropDesc, uint32(property), uint32(format))
	if err != nil {
		return nil, err
	}
	var desc mtp.Property
	if err := desc.Read(data); err != nil {
		return nil, err
	}
	return &desc, nil
}

// GetObjectPropValue reads a property whose type the caller knows,
// for example from GetObjectPropDesc.
func (c *Client) GetObjectPropValue(handle uint32, property, dataType uint16) (mtp.PropertyValue, error) {
	data, _, err := c.getData(mtp.OC_MTP_GetObjectPropValue, handle, uint32(property))
	if err != nil {
		return mtp.PropertyValue{}, err
	}
	return mtp.ReadPropertyValue(data, dataType)
}

func (c *Client) SetObjectPropValue(handle uint32, property, dataType uint16, v mtp.PropertyValue) error {
	_, err := c.putData(mtp.OC_MTP_SetObjectPropValue, []uint32{handle, uint32(property)},
		func(d *mtp.DataPacket) error { return mtp.WritePropertyValue(d, dataType, v) })
	return err
}

// PropListElement is one entry of an object property list.
type PropListElement struct {
	Handle   uint32
	Code     uint16
	DataType uint16
	Value    mtp.PropertyValue
}

func (c *Client) GetObjectPropList(handle, format, property, group, depth uint32) ([]PropListElement, error) {
	data, _, err := c.getData(mtp.OC_MTP_GetObjPropList, handle, format, property, group, depth)
	if err != nil {
		return nil, err
	}
	n, err := data.GetUint32()
	if err != nil {
		return nil, err
	}
	elems := make([]PropListElement, 0, n)
	for i := uint32(0); i < n; i++ {
		var e PropListElement
		if e.Handle, err = data.GetUint32(); err != nil {
			return nil, err
		}
		if e.Code, err = data.GetUint16(); err != nil {
			return nil, err
		}
		if e.DataType, err = data.GetUint16(); err != nil {
			return nil, err
		}
		if e.Value, err = mtp.ReadPropertyValue(data, e.DataType); err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	return elems, nil
}

func (c *Client) GetDevicePropDesc(property uint16) (*mtp.Property, error) {
	data, _, err := c.getData(mtp.OC_GetDevicePropDesc, uint32(property))
	if err != nil {
		return nil, err
	}
	var desc mtp.Property
	if err := desc.Read(data); err != nil {
		return nil, err
	}
	return &desc, nil
}

func (c *Client) GetDevicePropValue(property, dataType uint16) (mtp.PropertyValue, error) {
	data, _, err := c.getData(mtp.OC_GetDevicePropValue, uint32(property))
	if err != nil {
		return mtp.PropertyValue{}, err
	}
	return mtp.ReadPropertyValue(data, dataType)
}

func (c *Client) SetDevicePropValue(property, dataType uint16, v mtp.PropertyValue) error {
	_, err := c.putData(mtp.OC_SetDevicePropValue, []uint32{uint32(property)},
		func(d *mtp.DataPacket) error { return mtp.WritePropertyValue(d, dataType, v) })
	return err
}

func (c *Client) ResetDevicePropValue(property uint16) error {
	var req, rep mtp.Container
	req.Code = mtp.OC_ResetDevicePropValue
	req.Param = []uint32{uint32(property)}
	return c.RunTransaction(&req, &rep, nil, nil, 0)
}
