package codec

import gojson "github.com/goccy/go-json"

// GoJSON uses github.com/goccy/go-json. Column names hold no HTML, so
// escaping is skipped.
type GoJSON struct{}

func (GoJSON) Marshal(v any) ([]byte, error) { return gojson.MarshalNoEscape(v) }

func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }

func (GoJSON) Name() string { return "go-json" }
