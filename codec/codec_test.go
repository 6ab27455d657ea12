package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	SampleID int               `json:"sample_id"`
	Columns  map[string][]byte `json:"columns"`
}

func TestByName(t *testing.T) {
	assert.Equal(t, []string{"go-json", "json", "json-indent"}, Names())
	for _, name := range Names() {
		c, ok := ByName(name)
		require.True(t, ok)
		assert.Equal(t, name, c.Name())
	}
	_, ok := ByName("msgpack")
	assert.False(t, ok)
}

func TestCodecsInteroperate(t *testing.T) {
	in := doc{SampleID: 3, Columns: map[string][]byte{"0/1": {0, 1, 2, 255}, "_C_0/1": {7}}}
	for _, enc := range builtin {
		data := MustMarshal(enc, in)
		for _, dec := range builtin {
			var out doc
			require.NoError(t, dec.Unmarshal(data, &out), "%s -> %s", enc.Name(), dec.Name())
			assert.Equal(t, in, out)
		}
	}
}

func TestIndent(t *testing.T) {
	data := MustMarshal(JSON{Indent: "  "}, doc{SampleID: 1})
	assert.Contains(t, string(data), "\n  \"sample_id\": 1")
	assert.NotContains(t, string(MustMarshal(JSON{}, doc{SampleID: 1})), "\n")
}

func TestMustMarshalPanics(t *testing.T) {
	assert.Panics(t, func() { MustMarshal(nil, make(chan int)) })
}
