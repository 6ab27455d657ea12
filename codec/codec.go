// Package codec encodes the documents of the document backend.
//
// Document blobs record the codec name in their header, so changing the
// default only affects newly written documents. All codecs produce JSON and
// read each other's output.
package codec

import "fmt"

// Codec turns documents into bytes and back. Implementations must be safe
// for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	// Name is stored in every document header; it must never change.
	Name() string
}

// Default is the codec of newly written documents.
var Default Codec = GoJSON{}

var builtin = []Codec{GoJSON{}, JSON{}, JSON{Indent: "  "}}

// ByName resolves the codec recorded in a document header.
func ByName(name string) (Codec, bool) {
	for _, c := range builtin {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Names lists the codecs ByName resolves.
func Names() []string {
	names := make([]string, len(builtin))
	for i, c := range builtin {
		names[i] = c.Name()
	}
	return names
}

// MustMarshal encodes v with c, or Default when c is nil, and panics on
// failure. For tests and fixtures.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("codec %s: %v", c.Name(), err))
	}
	return b
}
