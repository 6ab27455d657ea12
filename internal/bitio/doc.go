// Package bitio packs fixed-width bit fields into byte slices.
//
// Bit order is little-endian: bit offset 0 is the least significant bit of
// byte 0, and a multi-bit value occupies increasing offsets starting with its
// least significant bit. Fields may straddle byte boundaries.
//
// Used for:
//   - per-variant file index entries
//   - consequence type / biotype / transcript flag code streams
//   - population frequency and clinical code streams
package bitio
