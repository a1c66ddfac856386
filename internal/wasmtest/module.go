// Package wasmtest builds small WebAssembly binaries for tests of the program
// runner, so fixtures do not need an external compiler.
package wasmtest

import (
	"bytes"
	"fmt"

	"github.com/parac-dev/parac-runtime/domain/entities"
	"github.com/parac-dev/parac-runtime/internal/abi"
)

// ValType is a WebAssembly number type.
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Import is an imported host function.
type Import struct {
	Module string
	Name   string
	Type   FuncType
}

// Func is a defined function. Export names it in the export section when
// non-empty. Body holds the instructions without the final end opcode.
type Func struct {
	Export string
	Type   FuncType
	Body   []byte
}

// Segment is an active data segment for memory 0.
type Segment struct {
	Offset uint32
	Data   []byte
}

// Module is a minimal single-memory module. Imported functions take the
// first function indices, followed by Funcs in order.
type Module struct {
	Imports     []Import
	Funcs       []Func
	MemoryPages uint32 // 0 means no memory
	NoExportMem bool
	Data        []Segment
}

// Encode returns the binary encoding of m.
func (m *Module) Encode() []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x61, 0x73, 0x6D}) // magic
	buf.Write([]byte{0x01, 0x00, 0x00, 0x00}) // version 1

	// One type per function keeps indices trivial.
	var types []byte
	types = appendULEB128(types, uint64(len(m.Imports)+len(m.Funcs)))
	for _, imp := range m.Imports {
		types = appendFuncType(types, imp.Type)
	}
	for _, fn := range m.Funcs {
		types = appendFuncType(types, fn.Type)
	}
	writeSection(&buf, 1, types)

	if len(m.Imports) > 0 {
		var imports []byte
		imports = appendULEB128(imports, uint64(len(m.Imports)))
		for i, imp := range m.Imports {
			imports = appendName(imports, imp.Module)
			imports = appendName(imports, imp.Name)
			imports = append(imports, 0x00)
			imports = appendULEB128(imports, uint64(i))
		}
		writeSection(&buf, 2, imports)
	}

	if len(m.Funcs) > 0 {
		var funcs []byte
		funcs = appendULEB128(funcs, uint64(len(m.Funcs)))
		for i := range m.Funcs {
			funcs = appendULEB128(funcs, uint64(len(m.Imports)+i))
		}
		writeSection(&buf, 3, funcs)
	}

	if m.MemoryPages > 0 {
		mem := appendULEB128(nil, 1)
		mem = append(mem, 0x00)
		mem = appendULEB128(mem, uint64(m.MemoryPages))
		writeSection(&buf, 5, mem)
	}

	var exports []byte
	count := 0
	for i, fn := range m.Funcs {
		if fn.Export == "" {
			continue
		}
		exports = appendName(exports, fn.Export)
		exports = append(exports, 0x00)
		exports = appendULEB128(exports, uint64(len(m.Imports)+i))
		count++
	}
	if m.MemoryPages > 0 && !m.NoExportMem {
		exports = appendName(exports, "memory")
		exports = append(exports, 0x02, 0x00)
		count++
	}
	if count > 0 {
		writeSection(&buf, 7, append(appendULEB128(nil, uint64(count)), exports...))
	}

	if len(m.Funcs) > 0 {
		var code []byte
		code = appendULEB128(code, uint64(len(m.Funcs)))
		for _, fn := range m.Funcs {
			body := append([]byte{0x00}, fn.Body...) // no locals
			body = append(body, 0x0B)
			code = appendULEB128(code, uint64(len(body)))
			code = append(code, body...)
		}
		writeSection(&buf, 10, code)
	}

	if len(m.Data) > 0 {
		var data []byte
		data = appendULEB128(data, uint64(len(m.Data)))
		for _, seg := range m.Data {
			data = append(data, 0x00)
			data = append(data, I32Const(int32(seg.Offset))...)
			data = append(data, 0x0B)
			data = appendULEB128(data, uint64(len(seg.Data)))
			data = append(data, seg.Data...)
		}
		writeSection(&buf, 11, data)
	}

	return buf.Bytes()
}

// I32Const is the i32.const instruction.
func I32Const(v int32) []byte { return appendSLEB128([]byte{0x41}, int64(v)) }

// I64Const is the i64.const instruction.
func I64Const(v int64) []byte { return appendSLEB128([]byte{0x42}, v) }

// Call is the call instruction.
func Call(funcIdx uint32) []byte { return appendULEB128([]byte{0x10}, uint64(funcIdx)) }

// Unreachable is the unreachable instruction.
func Unreachable() []byte { return []byte{0x00} }

// Concat joins instruction sequences.
func Concat(instrs ...[]byte) []byte {
	return bytes.Join(instrs, nil)
}

// DataBase is the address fixture data is placed at.
const DataBase = 1024

// ProcExit is the WASI import used to terminate a program.
var ProcExit = Import{
	Module: "wasi_snapshot_preview1",
	Name:   "proc_exit",
	Type:   FuncType{Params: []ValType{I32}},
}

// EntryModule builds a program whose entry function returns the address of
// a ph_EntryPoint holding ep.
func EntryModule(ep entities.EntryPoint) ([]byte, error) {
	arena, addr, err := entryImage(ep)
	if err != nil {
		return nil, err
	}
	m := &Module{
		Funcs: []Func{{
			Export: entities.DefaultEntrySymbol,
			Type:   FuncType{Results: []ValType{I32}},
			Body:   I32Const(int32(addr)),
		}},
		MemoryPages: 1,
		Data:        []Segment{{Offset: arena.Base(), Data: arena.Bytes()}},
	}
	return m.Encode(), nil
}

// PackedEntryModule is EntryModule for an entry function returning the
// address and size of the record packed into an i64. size overrides the
// encoded size when non-zero.
func PackedEntryModule(ep entities.EntryPoint, size uint32) ([]byte, error) {
	arena, addr, err := entryImage(ep)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		size = abi.EntryPointLayout(abi.Wasm32).Size
	}
	m := &Module{
		Funcs: []Func{{
			Export: entities.DefaultEntrySymbol,
			Type:   FuncType{Results: []ValType{I64}},
			Body:   I64Const(int64(abi.PackPtrLen(addr, size))),
		}},
		MemoryPages: 1,
		Data:        []Segment{{Offset: arena.Base(), Data: arena.Bytes()}},
	}
	return m.Encode(), nil
}

func entryImage(ep entities.EntryPoint) (*abi.Arena, uint32, error) {
	arena := abi.NewArena(DataBase)
	raw, err := abi.EncodeEntryPoint(abi.Wasm32, ep, arena)
	if err != nil {
		return nil, 0, err
	}
	addr := arena.Alloc(uint32(len(raw)), abi.EntryPointLayout(abi.Wasm32).Align)
	if err := arena.Write(addr, raw); err != nil {
		return nil, 0, fmt.Errorf("wasmtest: %w", err)
	}
	return arena, addr, nil
}

// ExitModule builds a program that calls proc_exit(code) from its entry
// function.
func ExitModule(code int32) []byte {
	m := &Module{
		Imports: []Import{ProcExit},
		Funcs: []Func{{
			Export: entities.DefaultEntrySymbol,
			Type:   FuncType{Results: []ValType{I32}},
			Body:   Concat(I32Const(code), Call(0), Unreachable()),
		}},
		MemoryPages: 1,
	}
	return m.Encode()
}

// TrapModule builds a program whose entry function traps.
func TrapModule() []byte {
	m := &Module{
		Funcs: []Func{{
			Export: entities.DefaultEntrySymbol,
			Type:   FuncType{Results: []ValType{I32}},
			Body:   Unreachable(),
		}},
		MemoryPages: 1,
	}
	return m.Encode()
}

// ReturnModule builds a program whose entry function returns addr without
// placing any data, for tests of bad addresses.
func ReturnModule(export string, addr int32, exportMemory bool) []byte {
	m := &Module{
		Funcs: []Func{{
			Export: export,
			Type:   FuncType{Results: []ValType{I32}},
			Body:   I32Const(addr),
		}},
		MemoryPages: 1,
		NoExportMem: !exportMemory,
	}
	return m.Encode()
}

func writeSection(buf *bytes.Buffer, id byte, contents []byte) {
	buf.WriteByte(id)
	buf.Write(appendULEB128(nil, uint64(len(contents))))
	buf.Write(contents)
}

func appendFuncType(b []byte, ft FuncType) []byte {
	b = append(b, 0x60)
	b = appendULEB128(b, uint64(len(ft.Params)))
	for _, p := range ft.Params {
		b = append(b, byte(p))
	}
	b = appendULEB128(b, uint64(len(ft.Results)))
	for _, r := range ft.Results {
		b = append(b, byte(r))
	}
	return b
}

func appendName(b []byte, name string) []byte {
	b = appendULEB128(b, uint64(len(name)))
	return append(b, name...)
}

func appendULEB128(b []byte, v uint64) []byte {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}

func appendSLEB128(b []byte, v int64) []byte {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}
