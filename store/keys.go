package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Row keys are sampleID (4 bytes, big endian) | chromosome | 0x00 | batch
// start (4 bytes, big endian), so the rows of a sample and chromosome sort
// by batch.

// EncodeRowKey appends the row key of (sampleID, chromosome, batchStart) to
// dst.
func EncodeRowKey(dst []byte, sampleID int, chromosome string, batchStart int) []byte {
	dst = ChromosomePrefix(dst, sampleID, chromosome)
	return binary.BigEndian.AppendUint32(dst, uint32(batchStart))
}

// SamplePrefix appends the key prefix shared by every row of a sample.
func SamplePrefix(dst []byte, sampleID int) []byte {
	return binary.BigEndian.AppendUint32(dst, uint32(sampleID))
}

// ChromosomePrefix appends the key prefix shared by the rows of a sample on
// one chromosome.
func ChromosomePrefix(dst []byte, sampleID int, chromosome string) []byte {
	dst = SamplePrefix(dst, sampleID)
	dst = append(dst, chromosome...)
	return append(dst, 0)
}

// DecodeRowKey parses a row key.
func DecodeRowKey(key []byte) (sampleID int, chromosome string, batchStart int, err error) {
	if len(key) < 9 {
		return 0, "", 0, fmt.Errorf("row key too short: %x", key)
	}
	sep := bytes.IndexByte(key[4:], 0)
	if sep < 0 || len(key) != 4+sep+1+4 {
		return 0, "", 0, fmt.Errorf("malformed row key: %x", key)
	}
	sampleID = int(binary.BigEndian.Uint32(key))
	chromosome = string(key[4 : 4+sep])
	batchStart = int(binary.BigEndian.Uint32(key[4+sep+1:]))
	return sampleID, chromosome, batchStart, nil
}
