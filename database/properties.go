package database

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hanwen/go-mtpd/mtp"
)

var objectProperties = []uint16{
	mtp.OPC_StorageID,
	mtp.OPC_ObjectFormat,
	mtp.OPC_ProtectionStatus,
	mtp.OPC_ObjectSize,
	mtp.OPC_ObjectFileName,
	mtp.OPC_DateCreated,
	mtp.OPC_DateModified,
	mtp.OPC_ParentObject,
	mtp.OPC_PersistantUniqueObjectIdentifier,
	mtp.OPC_Name,
	mtp.OPC_DisplayName,
	mtp.OPC_DateAdded,
}

var associationProperties = append(append([]uint16{}, objectProperties...),
	mtp.OPC_AssociationType,
	mtp.OPC_AssociationDesc,
)

func (db *DB) GetSupportedObjectProperties(format uint16) []uint16 {
	if format == mtp.OFC_Association {
		return associationProperties
	}
	return objectProperties
}

func supportsProperty(format, property uint16) bool {
	for _, p := range associationProperties {
		if p == property {
			return format == mtp.OFC_Association || format == 0 ||
				(property != mtp.OPC_AssociationType && property != mtp.OPC_AssociationDesc)
		}
	}
	return false
}

// objectPropertyType is the wire type of every supported object
// property.
var objectPropertyType = map[uint16]uint16{
	mtp.OPC_StorageID:                        mtp.DTC_UINT32,
	mtp.OPC_ObjectFormat:                     mtp.DTC_UINT16,
	mtp.OPC_ProtectionStatus:                 mtp.DTC_UINT16,
	mtp.OPC_ObjectSize:                       mtp.DTC_UINT64,
	mtp.OPC_ObjectFileName:                   mtp.DTC_STR,
	mtp.OPC_DateCreated:                      mtp.DTC_STR,
	mtp.OPC_DateModified:                     mtp.DTC_STR,
	mtp.OPC_ParentObject:                     mtp.DTC_UINT32,
	mtp.OPC_PersistantUniqueObjectIdentifier: mtp.DTC_UINT128,
	mtp.OPC_Name:                             mtp.DTC_STR,
	mtp.OPC_DisplayName:                      mtp.DTC_STR,
	mtp.OPC_DateAdded:                        mtp.DTC_STR,
	mtp.OPC_AssociationType:                  mtp.DTC_UINT16,
	mtp.OPC_AssociationDesc:                  mtp.DTC_UINT32,
}

func (o *object) property(code uint16) (mtp.PropertyValue, bool) {
	switch code {
	case mtp.OPC_StorageID:
		return mtp.UintValue(uint64(o.Storage)), true
	case mtp.OPC_ObjectFormat:
		return mtp.UintValue(uint64(o.Format)), true
	case mtp.OPC_ProtectionStatus:
		return mtp.UintValue(0), true
	case mtp.OPC_ObjectSize:
		return mtp.UintValue(uint64(o.Size)), true
	case mtp.OPC_ObjectFileName, mtp.OPC_Name:
		return mtp.StrValue(o.Name), true
	case mtp.OPC_DisplayName:
		return mtp.StrValue(strings.TrimSuffix(o.Name, filepath.Ext(o.Name))), true
	case mtp.OPC_DateCreated:
		return mtp.StrValue(mtp.FormatTime(o.Created)), true
	case mtp.OPC_DateModified:
		return mtp.StrValue(mtp.FormatTime(o.Modified)), true
	case mtp.OPC_DateAdded:
		return mtp.StrValue(mtp.FormatTime(o.Added)), true
	case mtp.OPC_ParentObject:
		return mtp.UintValue(uint64(o.Parent)), true
	case mtp.OPC_PersistantUniqueObjectIdentifier:
		return mtp.WideValue(mtp.Uint128FromBytes(o.UUID)), true
	case mtp.OPC_AssociationType:
		if o.Format == mtp.OFC_Association {
			return mtp.UintValue(mtp.AT_GenericFolder), true
		}
		return mtp.UintValue(mtp.AT_Undefined), true
	case mtp.OPC_AssociationDesc:
		return mtp.UintValue(0), true
	}
	return mtp.PropertyValue{}, false
}

func (db *DB) GetObjectPropertyValue(handle uint32, property uint16, data *mtp.DataPacket) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	o, err := db.get(handle, false)
	if err != nil {
		return err
	}
	if !supportsProperty(o.Format, property) {
		return mtp.RCError(mtp.RC_MTP_ObjectProp_Not_Supported)
	}
	v, _ := o.property(property)
	return mtp.WritePropertyValue(data, objectPropertyType[property], v)
}

// SetObjectPropertyValue supports renaming through ObjectFileName.
// Every other property is read-only.
func (db *DB) SetObjectPropertyValue(handle uint32, property uint16, data *mtp.DataPacket) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	o, err := db.get(handle, false)
	if err != nil {
		return err
	}
	if !supportsProperty(o.Format, property) {
		return mtp.RCError(mtp.RC_MTP_ObjectProp_Not_Supported)
	}
	if property != mtp.OPC_ObjectFileName {
		return mtp.RCError(mtp.RC_AccessDenied)
	}
	name, err := data.GetString()
	if err != nil {
		return mtp.RCError(mtp.RC_MTP_Invalid_ObjectProp_Value)
	}
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, '/') {
		return mtp.RCError(mtp.RC_MTP_Invalid_ObjectProp_Value)
	}
	if name == o.Name {
		return nil
	}
	dst := filepath.Join(filepath.Dir(o.Path), name)
	if _, err := os.Lstat(dst); err == nil {
		return mtp.RCError(mtp.RC_MTP_Invalid_ObjectProp_Value)
	}
	if err := os.Rename(o.Path, dst); err != nil {
		return err
	}
	if err := db.relocate(o, dst, o.Parent, o.Storage); err != nil {
		// Keep the filesystem in line with the table.
		os.Rename(dst, o.Path)
		return err
	}
	db.log.Debugf("renamed 0x%x to %s", handle, dst)
	return nil
}

func (db *DB) GetObjectPropertyDesc(property, format uint16) *mtp.Property {
	if !supportsProperty(format, property) {
		return nil
	}
	p := mtp.NewProperty(property, objectPropertyType[property], property == mtp.OPC_ObjectFileName)
	switch property {
	case mtp.OPC_DateCreated, mtp.OPC_DateModified, mtp.OPC_DateAdded:
		p.SetDateTimeForm()
	case mtp.OPC_ProtectionStatus:
		p.SetEnumForm(mtp.UintValue(0), mtp.UintValue(1))
	case mtp.OPC_AssociationType:
		p.SetEnumForm(mtp.UintValue(mtp.AT_GenericFolder))
	}
	return p
}

// GetObjectPropertyList writes the elements of an ObjectPropList
// dataset: a u32 count, then handle, property, type and value per
// element.
func (db *DB) GetObjectPropertyList(handle, format, property, groupCode, depth uint32, data *mtp.DataPacket) error {
	if groupCode != 0 {
		return mtp.RCError(mtp.RC_MTP_Specification_By_Group_Unsupported)
	}
	if depth > 1 && depth != mtp.AllHandles {
		return mtp.RCError(mtp.RC_MTP_Specification_By_Depth_Unsupported)
	}
	if property != mtp.AllHandles && objectPropertyType[uint16(property)] == 0 {
		return mtp.RCError(mtp.RC_MTP_ObjectProp_Not_Supported)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	var objs []*object
	var err error
	switch {
	case handle == mtp.AllHandles:
		objs, err = db.query("pending = 0")
	case depth == 0:
		var o *object
		if o, err = db.get(handle, false); err == nil {
			objs = []*object{o}
		}
	default:
		if handle != 0 {
			if _, err = db.get(handle, false); err != nil {
				break
			}
		}
		objs, err = db.query("pending = 0 AND parent = ?", handle)
	}
	if err != nil {
		return err
	}

	type element struct {
		o    *object
		code uint16
	}
	var elems []element
	for _, o := range objs {
		if format != 0 && uint32(o.Format) != format {
			continue
		}
		if property == mtp.AllHandles {
			for _, code := range db.GetSupportedObjectProperties(o.Format) {
				elems = append(elems, element{o, code})
			}
		} else if supportsProperty(o.Format, uint16(property)) {
			elems = append(elems, element{o, uint16(property)})
		}
	}

	data.PutUint32(uint32(len(elems)))
	for _, e := range elems {
		dataType := objectPropertyType[e.code]
		v, _ := e.o.property(e.code)
		data.PutUint32(e.o.Handle)
		data.PutUint16(e.code)
		data.PutUint16(dataType)
		if err := mtp.WritePropertyValue(data, dataType, v); err != nil {
			return err
		}
	}
	return nil
}

var deviceProperties = []uint16{
	mtp.DPC_BatteryLevel,
	mtp.DPC_MTP_SynchronizationPartner,
	mtp.DPC_MTP_DeviceFriendlyName,
	mtp.DPC_MTP_PerceivedDeviceType,
}

func (db *DB) GetSupportedDeviceProperties() []uint16 {
	return deviceProperties
}

// storedString reads a writable string property, falling back to def.
func (db *DB) storedString(code uint16, def string) (string, error) {
	var v string
	err := db.sql.QueryRow("SELECT value FROM device_props WHERE code = ?", code).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	return v, err
}

func (db *DB) batteryLevel() uint8 {
	if db.opts.BatteryPath == "" {
		return 100
	}
	b, err := os.ReadFile(db.opts.BatteryPath)
	if err != nil {
		db.log.Debugf("battery: %v", err)
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || n < 0 {
		return 0
	}
	return uint8(min(n, 100))
}

func (db *DB) stringDefault(code uint16) string {
	if code == mtp.DPC_MTP_DeviceFriendlyName {
		return db.opts.FriendlyName
	}
	return db.opts.SyncPartner
}

// deviceProperty builds the descriptor with its current value.
func (db *DB) deviceProperty(code uint16) (*mtp.Property, error) {
	switch code {
	case mtp.DPC_BatteryLevel:
		p := mtp.NewProperty(code, mtp.DTC_UINT8, false).
			SetRangeForm(mtp.UintValue(0), mtp.UintValue(100), mtp.UintValue(1))
		p.Current = mtp.UintValue(uint64(db.batteryLevel()))
		return p, nil
	case mtp.DPC_MTP_PerceivedDeviceType:
		p := mtp.NewProperty(code, mtp.DTC_UINT32, false)
		p.Default = mtp.UintValue(uint64(db.opts.PerceivedDeviceType))
		p.Current = p.Default
		return p, nil
	case mtp.DPC_MTP_SynchronizationPartner, mtp.DPC_MTP_DeviceFriendlyName:
		def := db.stringDefault(code)
		cur, err := db.storedString(code, def)
		if err != nil {
			return nil, err
		}
		p := mtp.NewProperty(code, mtp.DTC_STR, true)
		p.Default = mtp.StrValue(def)
		p.Current = mtp.StrValue(cur)
		return p, nil
	}
	return nil, mtp.RCError(mtp.RC_DevicePropNotSupported)
}

func (db *DB) GetDevicePropertyValue(property uint16, data *mtp.DataPacket) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	p, err := db.deviceProperty(property)
	if err != nil {
		return err
	}
	return mtp.WritePropertyValue(data, p.DataType, p.Current)
}

func (db *DB) SetDevicePropertyValue(property uint16, data *mtp.DataPacket) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	p, err := db.deviceProperty(property)
	if err != nil {
		return err
	}
	if !p.Writable {
		return mtp.RCError(mtp.RC_AccessDenied)
	}
	v, err := data.GetString()
	if err != nil {
		return mtp.RCError(mtp.RC_InvalidDevicePropValue)
	}
	_, err = db.sql.Exec("INSERT OR REPLACE INTO device_props (code, value) VALUES (?, ?)", property, v)
	return err
}

func (db *DB) ResetDeviceProperty(property uint16) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	p, err := db.deviceProperty(property)
	if err != nil {
		return err
	}
	if !p.Writable {
		return mtp.RCError(mtp.RC_AccessDenied)
	}
	_, err = db.sql.Exec("DELETE FROM device_props WHERE code = ?", property)
	return err
}

func (db *DB) GetDevicePropertyDesc(property uint16) *mtp.Property {
	db.mu.Lock()
	defer db.mu.Unlock()

	p, err := db.deviceProperty(property)
	if err != nil {
		return nil
	}
	return p
}
