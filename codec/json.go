package codec

import "encoding/json"

// JSON uses encoding/json. With Indent set the documents are pretty printed,
// which helps when inspecting a local index by hand.
type JSON struct {
	Indent string
}

func (c JSON) Marshal(v any) ([]byte, error) {
	if c.Indent != "" {
		return json.MarshalIndent(v, "", c.Indent)
	}
	return json.Marshal(v)
}

func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (c JSON) Name() string {
	if c.Indent != "" {
		return "json-indent"
	}
	return "json"
}
