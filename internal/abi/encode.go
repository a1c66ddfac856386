package abi

import (
	"fmt"

	parac "github.com/parac-dev/parac-runtime"
	"github.com/parac-dev/parac-runtime/domain/entities"
	"github.com/parac-dev/parac-runtime/domain/ports"
)

func (t Target) putPtr(dst []byte, v uint64) {
	if t.PtrSize == 8 {
		t.ByteOrder.PutUint64(dst, v)
		return
	}
	t.ByteOrder.PutUint32(dst, uint32(v))
}

func (t Target) getPtr(src []byte) uint64 {
	if t.PtrSize == 8 {
		return t.ByteOrder.Uint64(src)
	}
	return uint64(t.ByteOrder.Uint32(src))
}

func (t Target) putInt(dst []byte, v int32) { t.ByteOrder.PutUint32(dst, uint32(v)) }
func (t Target) getInt(src []byte) int32    { return int32(t.ByteOrder.Uint32(src)) }

func encodeError(typ string, err error) error {
	return &parac.WireFormatError{Operation: "encode", Type: typ, Err: err}
}

func decodeError(typ string, err error) error {
	return &parac.WireFormatError{Operation: "decode", Type: typ, Err: err}
}

// envelope is the part shared by ph_UndefBaseReturn and ph_ExitStatus.
func (t Target) putEnvelope(l StructLayout, dst []byte, isExc bool, exc, tb string, alloc StringAllocator) error {
	excPtr, err := alloc.AllocString(exc)
	if err != nil {
		return fmt.Errorf("exception: %w", err)
	}
	tbPtr, err := alloc.AllocString(tb)
	if err != nil {
		return fmt.Errorf("traceback: %w", err)
	}
	dst[l.mustField("is_exception").Offset] = boolByte(isExc)
	t.putPtr(dst[l.mustField("exception").Offset:], excPtr)
	t.putPtr(dst[l.mustField("traceback").Offset:], tbPtr)
	return nil
}

func (t Target) envelope(l StructLayout, src []byte, mem ports.Memory, dec ports.TextDecoder) (bool, string, string, error) {
	isExc := src[l.mustField("is_exception").Offset] != 0
	exc, err := ReadCString(mem, t.getPtr(src[l.mustField("exception").Offset:]), dec)
	if err != nil {
		return false, "", "", fmt.Errorf("exception: %w", err)
	}
	tb, err := ReadCString(mem, t.getPtr(src[l.mustField("traceback").Offset:]), dec)
	if err != nil {
		return false, "", "", fmt.Errorf("traceback: %w", err)
	}
	return isExc, exc, tb, nil
}

// EncodeBaseReturn lays out b as a ph_UndefBaseReturn.
func EncodeBaseReturn(t Target, b entities.BaseReturn, alloc StringAllocator) ([]byte, error) {
	l := BaseReturnLayout(t)
	dst := make([]byte, l.Size)
	if err := t.putEnvelope(l, dst, b.IsException, b.Exception, b.Traceback, alloc); err != nil {
		return nil, encodeError(l.Name, err)
	}
	dst[l.mustField("is_null").Offset] = boolByte(b.IsNull)
	return dst, nil
}

// DecodeBaseReturn reads a ph_UndefBaseReturn from src.
func DecodeBaseReturn(t Target, src []byte, mem ports.Memory, dec ports.TextDecoder) (entities.BaseReturn, error) {
	l := BaseReturnLayout(t)
	if uint32(len(src)) < l.Size {
		return entities.BaseReturn{}, decodeError(l.Name, fmt.Errorf("need %d bytes, have %d", l.Size, len(src)))
	}
	isExc, exc, tb, err := t.envelope(l, src, mem, dec)
	if err != nil {
		return entities.BaseReturn{}, decodeError(l.Name, err)
	}
	return entities.BaseReturn{
		IsException: isExc,
		Exception:   exc,
		Traceback:   tb,
		IsNull:      src[l.mustField("is_null").Offset] != 0,
	}, nil
}

// EncodeReturn lays out r as the result struct of its value type. The value
// of a raised result is written as zero bytes.
func EncodeReturn[T any](t Target, codec ValueCodec[T], r entities.Return[T], alloc StringAllocator) ([]byte, error) {
	l := ReturnLayout(t, codec)
	base, err := EncodeBaseReturn(t, r.Base, alloc)
	if err != nil {
		return nil, err
	}
	dst := make([]byte, l.Size)
	copy(dst[l.mustField("base").Offset:], base)
	if r.State() == entities.StateValue {
		codec.Put(t, dst[l.mustField("actual_value").Offset:], r.ActualValue)
	}
	return dst, nil
}

// DecodeReturn reads a result struct. The value is only decoded on the value
// path; the other paths leave it at its zero value.
func DecodeReturn[T any](t Target, codec ValueCodec[T], src []byte, mem ports.Memory, dec ports.TextDecoder) (entities.Return[T], error) {
	l := ReturnLayout(t, codec)
	if uint32(len(src)) < l.Size {
		return entities.Return[T]{}, decodeError(l.Name, fmt.Errorf("need %d bytes, have %d", l.Size, len(src)))
	}
	baseField := l.mustField("base")
	base, err := DecodeBaseReturn(t, src[baseField.Offset:baseField.Offset+baseField.Size], mem, dec)
	if err != nil {
		return entities.Return[T]{}, err
	}
	r := entities.Return[T]{Base: base}
	if base.State() == entities.StateValue {
		r.ActualValue = codec.Get(t, src[l.mustField("actual_value").Offset:])
	}
	return r, nil
}

// EncodeExitStatus lays out s as a ph_ExitStatus.
func EncodeExitStatus(t Target, s entities.ExitStatus, alloc StringAllocator) ([]byte, error) {
	l := ExitStatusLayout(t)
	dst := make([]byte, l.Size)
	if err := t.putEnvelope(l, dst, s.IsException, s.Exception, s.Traceback, alloc); err != nil {
		return nil, encodeError(l.Name, err)
	}
	t.putInt(dst[l.mustField("status_code").Offset:], s.StatusCode)
	return dst, nil
}

// DecodeExitStatus reads a ph_ExitStatus from src.
func DecodeExitStatus(t Target, src []byte, mem ports.Memory, dec ports.TextDecoder) (entities.ExitStatus, error) {
	l := ExitStatusLayout(t)
	if uint32(len(src)) < l.Size {
		return entities.ExitStatus{}, decodeError(l.Name, fmt.Errorf("need %d bytes, have %d", l.Size, len(src)))
	}
	isExc, exc, tb, err := t.envelope(l, src, mem, dec)
	if err != nil {
		return entities.ExitStatus{}, decodeError(l.Name, err)
	}
	return entities.ExitStatus{
		IsException: isExc,
		Exception:   exc,
		Traceback:   tb,
		StatusCode:  t.getInt(src[l.mustField("status_code").Offset:]),
	}, nil
}

// EncodeEntryPoint lays out ep as a ph_EntryPoint.
func EncodeEntryPoint(t Target, ep entities.EntryPoint, alloc StringAllocator) ([]byte, error) {
	l := EntryPointLayout(t)
	s, ok := entities.ExitStatusOf(ep)
	if !ok {
		return nil, encodeError(l.Name, fmt.Errorf("unsupported variant %s", variantName(ep)))
	}
	body, err := EncodeExitStatus(t, s, alloc)
	if err != nil {
		return nil, err
	}
	dst := make([]byte, l.Size)
	copy(dst, body)
	return dst, nil
}

// DecodeEntryPoint reads the ph_EntryPoint at addr. The C union carries no
// tag; variant names which member the entry function wrote, and only
// entities.VariantExit exists today.
func DecodeEntryPoint(t Target, mem ports.Memory, addr uint64, variant string, dec ports.TextDecoder) (entities.EntryPoint, error) {
	l := EntryPointLayout(t)
	if variant == "" {
		variant = entities.VariantExit
	}
	if variant != entities.VariantExit {
		return nil, decodeError(l.Name, fmt.Errorf("unsupported variant %s", variant))
	}
	if addr == 0 {
		return nil, decodeError(l.Name, fmt.Errorf("null entry point"))
	}
	src, err := readAt(mem, addr, l.Size)
	if err != nil {
		return nil, decodeError(l.Name, err)
	}
	s, err := DecodeExitStatus(t, src, mem, dec)
	if err != nil {
		return nil, err
	}
	return entities.ExitStatusToEntryPoint(s), nil
}

func variantName(ep entities.EntryPoint) string {
	if ep == nil {
		return "<nil>"
	}
	return ep.Variant()
}
