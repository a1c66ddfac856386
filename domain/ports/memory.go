package ports

// Memory is a program's linear memory as seen from the host.
type Memory interface {
	// Read returns byteCount bytes starting at offset, or false when the range
	// is out of bounds. The returned slice may alias the memory.
	Read(offset, byteCount uint32) ([]byte, bool)
	// Size returns the current size of the memory in bytes.
	Size() uint32
}

// TextDecoder converts raw diagnostic bytes read from a program into text.
type TextDecoder interface {
	Decode(raw []byte) (string, error)
}
