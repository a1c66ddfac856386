package abi

import "testing"

func TestPackPtrLen(t *testing.T) {
	ptr := uint32(0x12345678)
	length := uint32(0xABCDEF00)
	packed := PackPtrLen(ptr, length)

	expected := (uint64(ptr) << 32) | uint64(length)
	if packed != expected {
		t.Errorf("PackPtrLen(%x, %x) = %x; want %x", ptr, length, packed, expected)
	}

	p, l := UnpackPtrLen(packed)
	if p != ptr {
		t.Errorf("UnpackPtrLen returned ptr %x; want %x", p, ptr)
	}
	if l != length {
		t.Errorf("UnpackPtrLen returned length %x; want %x", l, length)
	}
}

func TestPackPtrLen_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("PackPtrLen did not panic with null pointer and non-zero length")
		}
	}()
	PackPtrLen(0, 100)
}

func TestUnpackPtrLen_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("UnpackPtrLen did not panic with null pointer and non-zero length")
		}
	}()
	// invalid packed: ptr=0, len=1
	packed := uint64(1)
	UnpackPtrLen(packed)
}

func TestSplitPtrLen(t *testing.T) {
	if _, _, err := SplitPtrLen(1); err == nil {
		t.Errorf("SplitPtrLen accepted a null pointer with non-zero length")
	}

	ptr, length, err := SplitPtrLen(PackPtrLen(64, 16))
	if err != nil {
		t.Fatalf("SplitPtrLen: %v", err)
	}
	if ptr != 64 || length != 16 {
		t.Errorf("SplitPtrLen = (%d, %d); want (64, 16)", ptr, length)
	}

	ptr, length, err = SplitPtrLen(0)
	if err != nil || ptr != 0 || length != 0 {
		t.Errorf("SplitPtrLen(0) = (%d, %d, %v); want (0, 0, nil)", ptr, length, err)
	}
}
