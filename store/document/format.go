package document

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/hupe1980/sampleidx/codec"
	"github.com/hupe1980/sampleidx/entry"
)

const formatVersion = 1

// ErrChecksum is returned when a document does not match its checksum.
var ErrChecksum = fmt.Errorf("%w: document checksum mismatch", entry.ErrCorrupted)

// Document is the stored form of one row.
type Document struct {
	SampleID   int               `json:"sample_id"`
	Chromosome string            `json:"chromosome"`
	BatchStart int               `json:"batch_start"`
	Columns    map[string][]byte `json:"columns"`
}

// Blob layout: [version u8][codec name len u8][codec name][xxhash64 LE][body].

func encodeDocument(c codec.Codec, doc *Document) ([]byte, error) {
	body, err := c.Marshal(doc)
	if err != nil {
		return nil, err
	}
	name := c.Name()
	out := make([]byte, 0, 2+len(name)+8+len(body))
	out = append(out, formatVersion, byte(len(name)))
	out = append(out, name...)
	out = binary.LittleEndian.AppendUint64(out, xxhash.Sum64(body))
	return append(out, body...), nil
}

func decodeDocument(blob []byte) (*Document, error) {
	if len(blob) < 2 {
		return nil, fmt.Errorf("%w: document too short", entry.ErrCorrupted)
	}
	if blob[0] != formatVersion {
		return nil, fmt.Errorf("%w: document format %d", entry.ErrCorrupted, blob[0])
	}
	n := int(blob[1])
	if len(blob) < 2+n+8 {
		return nil, fmt.Errorf("%w: document too short", entry.ErrCorrupted)
	}
	c, ok := codec.ByName(string(blob[2 : 2+n]))
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", entry.ErrCorrupted, blob[2:2+n])
	}
	sum := binary.LittleEndian.Uint64(blob[2+n:])
	body := blob[2+n+8:]
	if xxhash.Sum64(body) != sum {
		return nil, ErrChecksum
	}
	doc := &Document{}
	if err := c.Unmarshal(body, doc); err != nil {
		return nil, errors.Join(entry.ErrCorrupted, err)
	}
	return doc, nil
}
