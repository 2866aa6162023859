package mtp

import (
	"reflect"
	"testing"
)

func TestDevicePropertyRange(t *testing.T) {
	p := NewProperty(DPC_BatteryLevel, DTC_UINT8, false)
	p.Default = UintValue(100)
	p.Current = UintValue(42)
	p.SetRangeForm(UintValue(0), UintValue(100), UintValue(1))

	d := NewDataPacket()
	if err := p.Write(d); err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x01, 0x50, // code
		0x02, 0x00, // type
		0x00,       // get
		100,        // default
		42,         // current
		0x01,       // range
		0, 100, 1,
	}
	if err := diffIndex(d.Payload(), want); err != nil {
		t.Fatal(err)
	}

	var back Property
	if err := back.Read(d); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(&back, p) {
		t.Errorf("got %#v want %#v", back, *p)
	}
}

func TestObjectPropertyEnum(t *testing.T) {
	p := NewProperty(OPC_ProtectionStatus, DTC_UINT16, true)
	p.GroupCode = 0x21
	p.SetEnumForm(UintValue(PS_NoProtection), UintValue(PS_ReadOnly))

	d := NewDataPacket()
	if err := p.Write(d); err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x03, 0xDC,
		0x04, 0x00,
		0x01,
		0x00, 0x00, // default
		0x21, 0, 0, 0,
		0x02,       // enum
		0x02, 0x00, // count
		0x00, 0x00,
		0x01, 0x00,
	}
	if err := diffIndex(d.Payload(), want); err != nil {
		t.Fatal(err)
	}

	var back Property
	if err := back.Read(d); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(&back, p) {
		t.Errorf("got %#v want %#v", back, *p)
	}
}

func TestStringPropertyDateTime(t *testing.T) {
	p := NewProperty(OPC_DateModified, DTC_STR, false)
	p.SetDateTimeForm()

	d := NewDataPacket()
	if err := p.Write(d); err != nil {
		t.Fatal(err)
	}
	var back Property
	if err := back.Read(d); err != nil {
		t.Fatal(err)
	}
	if back.FormFlag != DPFF_DateTime || back.DataType != DTC_STR || d.Remaining() != 0 {
		t.Errorf("got %v, %d left", &back, d.Remaining())
	}
}

func TestArrayProperty(t *testing.T) {
	p := NewProperty(DPC_MTP_DeviceIcon, DTC_AUINT8, false)
	p.DefaultArray = []PropertyValue{UintValue(1), UintValue(2)}
	p.CurrentArray = []PropertyValue{UintValue(3)}

	d := NewDataPacket()
	if err := p.Write(d); err != nil {
		t.Fatal(err)
	}
	var back Property
	if err := back.Read(d); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(&back, p) {
		t.Errorf("got %#v want %#v", back, *p)
	}
}

func TestSignedValueRoundTrip(t *testing.T) {
	for _, typ := range []uint16{DTC_INT8, DTC_INT16, DTC_INT32, DTC_INT64} {
		d := NewDataPacket()
		if err := WritePropertyValue(d, typ, IntValue(-5)); err != nil {
			t.Fatal(err)
		}
		v, err := ReadPropertyValue(d, typ)
		if err != nil {
			t.Fatal(err)
		}
		if v.Int() != -5 {
			t.Errorf("type %s: got %d", DTC_names[int(typ)], v.Int())
		}
	}
}

func TestIsDeviceProperty(t *testing.T) {
	for code, want := range map[uint16]bool{
		DPC_BatteryLevel:                     true,
		DPC_MTP_DeviceFriendlyName:           true,
		OPC_ObjectFileName:                   false,
		OPC_PersistantUniqueObjectIdentifier: false,
	} {
		if got := IsDeviceProperty(code); got != want {
			t.Errorf("0x%x: got %v", code, got)
		}
	}
}
