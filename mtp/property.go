package mtp

import (
	"fmt"
)

// PropertyValue holds one value of any property data type. Integers up
// to 64 bits live in Bits, two's complement for the signed types;
// 128-bit values use Wide and strings use Str.
type PropertyValue struct {
	Bits uint64
	Wide Uint128
	Str  string
}

func IntValue(v int64) PropertyValue {
	return PropertyValue{Bits: uint64(v)}
}

func UintValue(v uint64) PropertyValue {
	return PropertyValue{Bits: v}
}

func StrValue(s string) PropertyValue {
	return PropertyValue{Str: s}
}

func WideValue(v Uint128) PropertyValue {
	return PropertyValue{Wide: v}
}

// Int returns Bits as a signed value.
func (v PropertyValue) Int() int64 {
	return int64(v.Bits)
}

// WritePropertyValue writes one scalar of data type dataType.
func WritePropertyValue(p *DataPacket, dataType uint16, v PropertyValue) error {
	switch dataType {
	case DTC_INT8:
		p.PutInt8(int8(v.Bits))
	case DTC_UINT8:
		p.PutUint8(uint8(v.Bits))
	case DTC_INT16:
		p.PutInt16(int16(v.Bits))
	case DTC_UINT16:
		p.PutUint16(uint16(v.Bits))
	case DTC_INT32:
		p.PutInt32(int32(v.Bits))
	case DTC_UINT32:
		p.PutUint32(uint32(v.Bits))
	case DTC_INT64:
		p.PutInt64(int64(v.Bits))
	case DTC_UINT64:
		p.PutUint64(v.Bits)
	case DTC_INT128:
		p.PutInt128(Int128{Lo: v.Wide.Lo, Hi: int64(v.Wide.Hi)})
	case DTC_UINT128:
		p.PutUint128(v.Wide)
	case DTC_STR:
		p.PutString(v.Str)
	default:
		return fmt.Errorf("unknown data type 0x%x", dataType)
	}
	return p.Err()
}

// ReadPropertyValue reads one scalar of data type dataType. Signed
// types are sign-extended into Bits.
func ReadPropertyValue(p *DataPacket, dataType uint16) (PropertyValue, error) {
	var v PropertyValue
	var err error
	switch dataType {
	case DTC_INT8:
		var x int8
		x, err = p.GetInt8()
		v.Bits = uint64(int64(x))
	case DTC_UINT8:
		var x uint8
		x, err = p.GetUint8()
		v.Bits = uint64(x)
	case DTC_INT16:
		var x int16
		x, err = p.GetInt16()
		v.Bits = uint64(int64(x))
	case DTC_UINT16:
		var x uint16
		x, err = p.GetUint16()
		v.Bits = uint64(x)
	case DTC_INT32:
		var x int32
		x, err = p.GetInt32()
		v.Bits = uint64(int64(x))
	case DTC_UINT32:
		var x uint32
		x, err = p.GetUint32()
		v.Bits = uint64(x)
	case DTC_INT64, DTC_UINT64:
		v.Bits, err = p.GetUint64()
	case DTC_INT128, DTC_UINT128:
		v.Wide, err = p.GetUint128()
	case DTC_STR:
		v.Str, err = p.GetString()
	default:
		err = fmt.Errorf("unknown data type 0x%x", dataType)
	}
	return v, err
}

func writeArrayValue(p *DataPacket, dataType uint16, vals []PropertyValue) error {
	p.PutUint32(uint32(len(vals)))
	elem := dataType &^ DTC_ARRAY_MASK
	for _, v := range vals {
		if err := WritePropertyValue(p, elem, v); err != nil {
			return err
		}
	}
	return nil
}

func readArrayValue(p *DataPacket, dataType uint16) ([]PropertyValue, error) {
	n, err := p.GetUint32()
	if err != nil {
		return nil, err
	}
	if int(n) > p.Remaining() {
		return nil, fmt.Errorf("%w: array of %d elements", ErrShortPacket, n)
	}
	elem := dataType &^ DTC_ARRAY_MASK
	vals := make([]PropertyValue, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := ReadPropertyValue(p, elem)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// IsArrayType reports whether dataType is an array of a scalar type.
func IsArrayType(dataType uint16) bool {
	return dataType != DTC_STR && dataType&DTC_ARRAY_MASK != 0
}

// IsDeviceProperty reports whether code names a device property rather
// than an object property.
func IsDeviceProperty(code uint16) bool {
	return code&0xF000 == 0x5000 || code&0xF800 == 0xD000
}

// Property describes one object or device property: its type, access,
// values and the optional form that restricts them.
type Property struct {
	Code      uint16
	DataType  uint16
	Writable  bool
	GroupCode uint32
	FormFlag  uint8

	Default PropertyValue
	Current PropertyValue

	// Values of array typed properties.
	DefaultArray []PropertyValue
	CurrentArray []PropertyValue

	// Range form.
	Min  PropertyValue
	Max  PropertyValue
	Step PropertyValue

	// Enumeration form.
	Enum []PropertyValue
}

func NewProperty(code, dataType uint16, writable bool) *Property {
	return &Property{
		Code:     code,
		DataType: dataType,
		Writable: writable,
		FormFlag: DPFF_None,
	}
}

func (p *Property) SetRangeForm(min, max, step PropertyValue) *Property {
	p.FormFlag = DPFF_Range
	p.Min, p.Max, p.Step = min, max, step
	return p
}

func (p *Property) SetEnumForm(vals ...PropertyValue) *Property {
	p.FormFlag = DPFF_Enumeration
	p.Enum = vals
	return p
}

func (p *Property) SetDateTimeForm() *Property {
	p.FormFlag = DPFF_DateTime
	return p
}

func (p *Property) IsDeviceProperty() bool {
	return IsDeviceProperty(p.Code)
}

func (p *Property) writeValue(d *DataPacket, scalar PropertyValue, array []PropertyValue) error {
	if IsArrayType(p.DataType) {
		return writeArrayValue(d, p.DataType, array)
	}
	return WritePropertyValue(d, p.DataType, scalar)
}

func (p *Property) readValue(d *DataPacket) (PropertyValue, []PropertyValue, error) {
	if IsArrayType(p.DataType) {
		vals, err := readArrayValue(d, p.DataType)
		return PropertyValue{}, vals, err
	}
	v, err := ReadPropertyValue(d, p.DataType)
	return v, nil, err
}

// Write emits the property descriptor dataset.
func (p *Property) Write(d *DataPacket) error {
	d.PutUint16(p.Code)
	d.PutUint16(p.DataType)
	if p.Writable {
		d.PutUint8(DPGS_GetSet)
	} else {
		d.PutUint8(DPGS_Get)
	}
	if err := p.writeValue(d, p.Default, p.DefaultArray); err != nil {
		return err
	}
	if p.IsDeviceProperty() {
		if err := p.writeValue(d, p.Current, p.CurrentArray); err != nil {
			return err
		}
	} else {
		d.PutUint32(p.GroupCode)
	}
	d.PutUint8(p.FormFlag)

	switch p.FormFlag {
	case DPFF_Range:
		for _, v := range []PropertyValue{p.Min, p.Max, p.Step} {
			if err := WritePropertyValue(d, p.DataType, v); err != nil {
				return err
			}
		}
	case DPFF_Enumeration:
		d.PutUint16(uint16(len(p.Enum)))
		for _, v := range p.Enum {
			if err := WritePropertyValue(d, p.DataType, v); err != nil {
				return err
			}
		}
	}
	return d.Err()
}

// Read parses a property descriptor dataset.
func (p *Property) Read(d *DataPacket) error {
	var err error
	if p.Code, err = d.GetUint16(); err != nil {
		return err
	}
	if p.DataType, err = d.GetUint16(); err != nil {
		return err
	}
	getSet, err := d.GetUint8()
	if err != nil {
		return err
	}
	p.Writable = getSet == DPGS_GetSet

	if p.Default, p.DefaultArray, err = p.readValue(d); err != nil {
		return err
	}
	if p.IsDeviceProperty() {
		if p.Current, p.CurrentArray, err = p.readValue(d); err != nil {
			return err
		}
	} else if p.GroupCode, err = d.GetUint32(); err != nil {
		return err
	}
	if p.FormFlag, err = d.GetUint8(); err != nil {
		return err
	}

	switch p.FormFlag {
	case DPFF_Range:
		if p.Min, err = ReadPropertyValue(d, p.DataType); err != nil {
			return err
		}
		if p.Max, err = ReadPropertyValue(d, p.DataType); err != nil {
			return err
		}
		if p.Step, err = ReadPropertyValue(d, p.DataType); err != nil {
			return err
		}
	case DPFF_Enumeration:
		n, err := d.GetUint16()
		if err != nil {
			return err
		}
		p.Enum = make([]PropertyValue, 0, n)
		for i := uint16(0); i < n; i++ {
			v, err := ReadPropertyValue(d, p.DataType)
			if err != nil {
				return err
			}
			p.Enum = append(p.Enum, v)
		}
	}
	return nil
}

func (p *Property) String() string {
	return fmt.Sprintf("prop %s type %s writable %v form %s",
		getName(propNames(p.Code), int(p.Code)),
		getName(DTC_names, int(p.DataType)),
		p.Writable,
		getName(DPFF_names, int(p.FormFlag)))
}

func propNames(code uint16) map[int]string {
	if IsDeviceProperty(code) {
		return DPC_names
	}
	return OPC_names
}
