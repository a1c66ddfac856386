package abi

import (
	"bytes"
	"fmt"
	"math"

	"github.com/parac-dev/parac-runtime/domain/ports"
)

// MaxStringLen bounds the length of a C string read from program memory.
const MaxStringLen = 1 << 20

// StringAllocator places a NUL-terminated copy of a string in program memory
// and returns its address. The empty string is encoded as a null pointer.
type StringAllocator interface {
	AllocString(s string) (uint64, error)
}

// Arena is a bump-allocated memory image starting at a fixed base address.
// It is used to build the data of a program image and to decode records
// without a running program.
type Arena struct {
	base uint32
	buf  []byte
}

// NewArena returns an empty arena whose first byte lives at base.
func NewArena(base uint32) *Arena {
	return &Arena{base: base}
}

func (a *Arena) Base() uint32  { return a.base }
func (a *Arena) Bytes() []byte { return a.buf }

// Size is the address one past the last allocated byte.
func (a *Arena) Size() uint32 { return a.base + uint32(len(a.buf)) }

// Alloc reserves size zeroed bytes aligned to align and returns their address.
func (a *Arena) Alloc(size, align uint32) uint32 {
	start := alignUp(a.Size(), align)
	grow := start + size - a.Size()
	a.buf = append(a.buf, make([]byte, grow)...)
	return start
}

// AllocString implements StringAllocator.
func (a *Arena) AllocString(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	if len(s) > MaxStringLen {
		return 0, fmt.Errorf("abi: string of %d bytes exceeds limit %d", len(s), MaxStringLen)
	}
	if bytes.IndexByte([]byte(s), 0) >= 0 {
		return 0, fmt.Errorf("abi: string contains a NUL byte")
	}
	addr := a.Alloc(uint32(len(s))+1, 1)
	copy(a.buf[addr-a.base:], s)
	return uint64(addr), nil
}

// Write copies data to addr, which must lie inside the arena.
func (a *Arena) Write(addr uint32, data []byte) error {
	if addr < a.base || uint64(addr)+uint64(len(data)) > uint64(a.Size()) {
		return fmt.Errorf("abi: write of %d bytes at 0x%x outside arena [0x%x, 0x%x)", len(data), addr, a.base, a.Size())
	}
	copy(a.buf[addr-a.base:], data)
	return nil
}

// Read implements ports.Memory.
func (a *Arena) Read(offset, byteCount uint32) ([]byte, bool) {
	if offset < a.base || uint64(offset)+uint64(byteCount) > uint64(a.Size()) {
		return nil, false
	}
	start := offset - a.base
	return a.buf[start : start+byteCount], true
}

// readAt reads n bytes at a 64-bit address from a 32-bit addressed memory.
func readAt(mem ports.Memory, addr uint64, n uint32) ([]byte, error) {
	if addr > math.MaxUint32 {
		return nil, fmt.Errorf("address 0x%x beyond 32-bit memory", addr)
	}
	b, ok := mem.Read(uint32(addr), n)
	if !ok {
		return nil, fmt.Errorf("read of %d bytes at 0x%x out of bounds (memory size %d)", n, addr, mem.Size())
	}
	return b, nil
}

// ReadCString reads the NUL-terminated string at ptr. A null pointer reads
// as the empty string.
func ReadCString(mem ports.Memory, ptr uint64, dec ports.TextDecoder) (string, error) {
	if ptr == 0 {
		return "", nil
	}
	if ptr > math.MaxUint32 || uint32(ptr) >= mem.Size() {
		return "", fmt.Errorf("string pointer 0x%x out of bounds (memory size %d)", ptr, mem.Size())
	}
	avail := mem.Size() - uint32(ptr)
	limit := avail
	if limit > MaxStringLen+1 {
		limit = MaxStringLen + 1
	}
	raw, err := readAt(mem, ptr, limit)
	if err != nil {
		return "", err
	}
	end := bytes.IndexByte(raw, 0)
	if end < 0 {
		if limit < avail || avail > MaxStringLen {
			return "", fmt.Errorf("string at 0x%x longer than %d bytes", ptr, MaxStringLen)
		}
		return "", fmt.Errorf("string at 0x%x is not NUL-terminated", ptr)
	}
	raw = raw[:end]
	if dec == nil {
		return string(raw), nil
	}
	return dec.Decode(raw)
}
