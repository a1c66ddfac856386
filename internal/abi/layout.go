// Package abi describes the C memory layout of the runtime records that
// generated code and the driver exchange, and encodes and decodes them.
//
// Field order follows the generated header exactly:
//
//	typedef struct { bool is_exception; const char* exception; const char* traceback; bool is_null; } ph_UndefBaseReturn;
//	typedef struct { ph_UndefBaseReturn base; T actual_value; } ph_ReturnType<T>;
//	typedef struct { bool is_exception; const char* exception; const char* traceback; int status_code; } ph_ExitStatus;
//	typedef union  { ph_ExitStatus exit_r; } ph_EntryPoint;
//
// Offsets use natural alignment, which is what every supported C compiler
// produces for these records.
package abi

import (
	"encoding/binary"
	"fmt"

	"github.com/parac-dev/parac-runtime/domain/entities"
)

// Target is a C data model.
type Target struct {
	Name      entities.Target
	PtrSize   uint32
	IntSize   uint32
	ByteOrder binary.ByteOrder
}

var (
	// Wasm32 is the ILP32 model used by wasm32 programs.
	Wasm32 = Target{Name: entities.TargetWasm32, PtrSize: 4, IntSize: 4, ByteOrder: binary.LittleEndian}
	// LP64 is the model of 64-bit Unix hosts.
	LP64 = Target{Name: entities.TargetLP64, PtrSize: 8, IntSize: 4, ByteOrder: binary.LittleEndian}
)

// TargetFor looks up a target by name.
func TargetFor(name entities.Target) (Target, error) {
	switch name {
	case entities.TargetWasm32, "":
		return Wasm32, nil
	case entities.TargetLP64:
		return LP64, nil
	default:
		return Target{}, fmt.Errorf("abi: unknown target %q", name)
	}
}

// Field is one member of a struct layout.
type Field struct {
	Name   string
	Offset uint32
	Size   uint32
	Align  uint32
}

// StructLayout is the memory layout of a C struct or union.
type StructLayout struct {
	Name   string
	Fields []Field
	Size   uint32
	Align  uint32
	Union  bool
}

// Field returns the member called name.
func (l StructLayout) Field(name string) (Field, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (l StructLayout) mustField(name string) Field {
	f, ok := l.Field(name)
	if !ok {
		panic(fmt.Sprintf("abi: %s has no field %s", l.Name, name))
	}
	return f
}

type member struct {
	name        string
	size, align uint32
}

func alignUp(n, align uint32) uint32 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

func structOf(name string, members ...member) StructLayout {
	l := StructLayout{Name: name, Align: 1}
	var off uint32
	for _, m := range members {
		off = alignUp(off, m.align)
		l.Fields = append(l.Fields, Field{Name: m.name, Offset: off, Size: m.size, Align: m.align})
		off += m.size
		if m.align > l.Align {
			l.Align = m.align
		}
	}
	l.Size = alignUp(off, l.Align)
	return l
}

func unionOf(name string, members ...member) StructLayout {
	l := StructLayout{Name: name, Align: 1, Union: true}
	for _, m := range members {
		l.Fields = append(l.Fields, Field{Name: m.name, Offset: 0, Size: m.size, Align: m.align})
		if m.size > l.Size {
			l.Size = m.size
		}
		if m.align > l.Align {
			l.Align = m.align
		}
	}
	l.Size = alignUp(l.Size, l.Align)
	return l
}

func (t Target) boolMember(name string) member { return member{name, 1, 1} }
func (t Target) ptrMember(name string) member  { return member{name, t.PtrSize, t.PtrSize} }
func (t Target) intMember(name string) member  { return member{name, t.IntSize, t.IntSize} }

// BaseReturnLayout is the layout of ph_UndefBaseReturn.
func BaseReturnLayout(t Target) StructLayout {
	return structOf("ph_UndefBaseReturn",
		t.boolMember("is_exception"),
		t.ptrMember("exception"),
		t.ptrMember("traceback"),
		t.boolMember("is_null"),
	)
}

// ExitStatusLayout is the layout of ph_ExitStatus.
func ExitStatusLayout(t Target) StructLayout {
	return structOf("ph_ExitStatus",
		t.boolMember("is_exception"),
		t.ptrMember("exception"),
		t.ptrMember("traceback"),
		t.intMember("status_code"),
	)
}

// EntryPointLayout is the layout of the ph_EntryPoint union.
func EntryPointLayout(t Target) StructLayout {
	exit := ExitStatusLayout(t)
	return unionOf("ph_EntryPoint",
		member{entities.VariantExit, exit.Size, exit.Align},
	)
}

// ReturnLayout is the layout of the result struct generated for the value
// type handled by codec.
func ReturnLayout[T any](t Target, codec ValueCodec[T]) StructLayout {
	base := BaseReturnLayout(t)
	return structOf("ph_ReturnType"+codec.CName(),
		member{"base", base.Size, base.Align},
		member{"actual_value", codec.Size(t), codec.Align(t)},
	)
}
