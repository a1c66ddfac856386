package abi

import "math"

// ValueCodec encodes the actual_value member of a result struct for one Go
// value type.
type ValueCodec[T any] interface {
	// CName is the suffix of the generated struct name (ph_ReturnType<CName>).
	CName() string
	Size(t Target) uint32
	Align(t Target) uint32
	Put(t Target, dst []byte, v T)
	Get(t Target, src []byte) T
}

// Int32Codec handles the C int.
type Int32Codec struct{}

func (Int32Codec) CName() string         { return "Int" }
func (Int32Codec) Size(t Target) uint32  { return t.IntSize }
func (Int32Codec) Align(t Target) uint32 { return t.IntSize }
func (Int32Codec) Put(t Target, dst []byte, v int32) {
	t.ByteOrder.PutUint32(dst, uint32(v))
}
func (Int32Codec) Get(t Target, src []byte) int32 {
	return int32(t.ByteOrder.Uint32(src))
}

// Int64Codec handles long long.
type Int64Codec struct{}

func (Int64Codec) CName() string       { return "Long" }
func (Int64Codec) Size(Target) uint32  { return 8 }
func (Int64Codec) Align(Target) uint32 { return 8 }
func (Int64Codec) Put(t Target, dst []byte, v int64) {
	t.ByteOrder.PutUint64(dst, uint64(v))
}
func (Int64Codec) Get(t Target, src []byte) int64 {
	return int64(t.ByteOrder.Uint64(src))
}

// Float64Codec handles double.
type Float64Codec struct{}

func (Float64Codec) CName() string       { return "Double" }
func (Float64Codec) Size(Target) uint32  { return 8 }
func (Float64Codec) Align(Target) uint32 { return 8 }
func (Float64Codec) Put(t Target, dst []byte, v float64) {
	t.ByteOrder.PutUint64(dst, math.Float64bits(v))
}
func (Float64Codec) Get(t Target, src []byte) float64 {
	return math.Float64frombits(t.ByteOrder.Uint64(src))
}

// BoolCodec handles bool.
type BoolCodec struct{}

func (BoolCodec) CName() string                    { return "Bool" }
func (BoolCodec) Size(Target) uint32               { return 1 }
func (BoolCodec) Align(Target) uint32              { return 1 }
func (BoolCodec) Put(_ Target, dst []byte, v bool) { dst[0] = boolByte(v) }
func (BoolCodec) Get(_ Target, src []byte) bool    { return src[0] != 0 }

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
