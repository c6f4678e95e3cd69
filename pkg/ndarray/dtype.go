package ndarray

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DType names an element type supported by the embedded engine.
type DType string

const (
	Float64 DType = "float64"
	Float32 DType = "float32"
	Int32   DType = "int32"
	Int16   DType = "int16"
	Int8    DType = "int8"
	Uint32  DType = "uint32"
	Uint16  DType = "uint16"
	Uint8   DType = "uint8"
)

// Itemsize returns the element width in bytes, or 0 for unknown dtypes.
func (d DType) Itemsize() int {
	switch d {
	case Float64:
		return 8
	case Float32, Int32, Uint32:
		return 4
	case Int16, Uint16:
		return 2
	case Int8, Uint8:
		return 1
	}
	return 0
}

// decodeElement reads one element of the given dtype from the start of
// b, widened to float64. The buffer view is normalized to native order
// at acquisition, so native-order decoding is correct here.
func decodeElement(d DType, b []byte) (float64, error) {
	switch d {
	case Float64:
		return math.Float64frombits(binary.NativeEndian.Uint64(b)), nil
	case Float32:
		return float64(math.Float32frombits(binary.NativeEndian.Uint32(b))), nil
	case Int32:
		return float64(int32(binary.NativeEndian.Uint32(b))), nil
	case Int16:
		return float64(int16(binary.NativeEndian.Uint16(b))), nil
	case Int8:
		return float64(int8(b[0])), nil
	case Uint32:
		return float64(binary.NativeEndian.Uint32(b)), nil
	case Uint16:
		return float64(binary.NativeEndian.Uint16(b)), nil
	case Uint8:
		return float64(b[0]), nil
	}
	return 0, &ConversionError{SourceType: string(d), TargetType: "float64"}
}

// String implements fmt.Stringer.
func (d DType) String() string {
	return string(d)
}

func validDType(d DType) error {
	if d.Itemsize() == 0 {
		return fmt.Errorf("ndarray: unsupported dtype %q", string(d))
	}
	return nil
}
