package crtp

import (
	"bytes"
	"testing"
)

// TestParseParamGetItemResponse tests unpacking of the TOC item type byte
func TestParseParamGetItemResponse(t *testing.T) {
	tests := []struct {
		name     string
		typeByte byte
		want     ParamType
		readonly bool
	}{
		{name: "uint8", typeByte: 0x00, want: ParamTypeUint8},
		{name: "uint16", typeByte: 0x01, want: ParamTypeUint16},
		{name: "uint32", typeByte: 0x02, want: ParamTypeUint32},
		{name: "int8", typeByte: 0x08, want: ParamTypeInt8},
		{name: "int16", typeByte: 0x09, want: ParamTypeInt16},
		{name: "int32", typeByte: 0x0A, want: ParamTypeInt32},
		{name: "float", typeByte: 0x06, want: ParamTypeFloat},
		{name: "readonly float", typeByte: 0x46, want: ParamTypeFloat, readonly: true},
		{name: "readonly uint8", typeByte: 0x40, want: ParamTypeUint8, readonly: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte{0x20, 0x00, 7, tt.typeByte, 'g', 0, 'n', 0}
			r, err := ParseParamGetItemResponse(data)
			if err != nil {
				t.Fatalf("ParseParamGetItemResponse() error = %v", err)
			}
			if r.Type != tt.want {
				t.Errorf("Type = %v, want %v", r.Type, tt.want)
			}
			if r.ReadOnly != tt.readonly {
				t.Errorf("ReadOnly = %v, want %v", r.ReadOnly, tt.readonly)
			}
			if r.ID != 7 || r.Group != "g" || r.Name != "n" {
				t.Errorf("entry = %+v, want id 7 g.n", r)
			}
		})
	}
}

// TestParamValueRoundTrip tests that every scalar type survives its wire
// encoding
func TestParamValueRoundTrip(t *testing.T) {
	values := []ParamValue{
		{Type: ParamTypeUint8, ValueU8: 255},
		{Type: ParamTypeUint16, ValueU16: 40000},
		{Type: ParamTypeUint32, ValueU32: 3000000000},
		{Type: ParamTypeInt8, ValueI8: -100},
		{Type: ParamTypeInt16, ValueI16: -20000},
		{Type: ParamTypeInt32, ValueI32: -2000000000},
		{Type: ParamTypeFloat, ValueF32: -3.25},
	}

	for _, v := range values {
		t.Run(v.Type.String(), func(t *testing.T) {
			wire := EncodeParamValue(v)
			if len(wire) != v.Type.Size() {
				t.Fatalf("encoded %d bytes, want %d", len(wire), v.Type.Size())
			}
			back, err := DecodeParamValue(v.Type, wire)
			if err != nil {
				t.Fatalf("DecodeParamValue() error = %v", err)
			}
			if back != v {
				t.Errorf("round trip = %+v, want %+v", back, v)
			}
		})
	}
}

// TestParamWriteRequestBytes tests the write request wire form
func TestParamWriteRequestBytes(t *testing.T) {
	req := ParamWriteRequest{ID: 13, Value: ParamValue{Type: ParamTypeUint16, ValueU16: 0x1234}}
	want := []byte{0x2E, 13, 0x34, 0x12}
	if got := req.Bytes(); !bytes.Equal(got, want) {
		t.Errorf("Bytes() = %v, want %v", got, want)
	}
}
