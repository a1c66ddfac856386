package abi

import "fmt"

// PackPtrLen packs a pointer and length into a single uint64.
// Pointer is stored in the high 32 bits, length in the low 32 bits.
// Panics if ptr is 0 and length > 0, indicating an invalid state.
func PackPtrLen(ptr, length uint32) uint64 {
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid pack - null pointer (0x0) with non-zero length (%d)", length))
	}
	return (uint64(ptr) << 32) | uint64(length)
}

// UnpackPtrLen unpacks a uint64 into its original pointer and length.
// Panics if ptr is 0 and length > 0, indicating an invalid packed value.
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr, length, err := SplitPtrLen(packed)
	if err != nil {
		panic(err.Error())
	}
	return ptr, length
}

// SplitPtrLen is UnpackPtrLen for values that come from a program, where an
// invalid pair is an error rather than a bug.
func SplitPtrLen(packed uint64) (ptr, length uint32, err error) {
	ptr = uint32(packed >> 32)
	length = uint32(packed)
	if ptr == 0 && length > 0 {
		return 0, 0, fmt.Errorf("abi: invalid unpack - null pointer (0x0) with non-zero length (%d)", length)
	}
	return ptr, length, nil
}
