package wasm

import (
	"fmt"
	"strings"

	parac "github.com/parac-dev/parac-runtime"
	"github.com/parac-dev/parac-runtime/domain/ports"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var charsets = map[string]encoding.Encoding{
	"":             unicode.UTF8,
	"utf-8":        unicode.UTF8,
	"utf8":         unicode.UTF8,
	"iso-8859-1":   charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
}

// Compile-time interface compliance check
var _ ports.TextDecoder = (*charsetDecoder)(nil)

type charsetDecoder struct {
	name string
	enc  encoding.Encoding
}

// NewTextDecoder returns the decoder for diagnostic text written in the named
// character set. The empty name selects UTF-8; invalid UTF-8 sequences decode
// to U+FFFD.
func NewTextDecoder(name string) (ports.TextDecoder, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	enc, ok := charsets[key]
	if !ok {
		return nil, &parac.ConfigError{
			Field: "runtime.diagnostic_encoding",
			Err:   fmt.Errorf("unsupported encoding %q", name),
		}
	}
	return &charsetDecoder{name: key, enc: enc}, nil
}

func (d *charsetDecoder) Decode(raw []byte) (string, error) {
	out, err := d.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s text: %w", d.name, err)
	}
	return string(out), nil
}
