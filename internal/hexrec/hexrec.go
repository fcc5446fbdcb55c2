// Package hexrec turns the hex strings found in IORegistry dumps into
// fixed-width little-endian records.
package hexrec

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

// RecordSize is the width of one voltage-states record in bytes.
const RecordSize = 8

// ErrInvalidHex is returned when a byte pair is not a valid hex digit pair.
var ErrInvalidHex = errors.New("invalid hex pair")

// Record is one raw (frequency, voltage) register pair.
type Record struct {
	FreqRaw uint32
	VoltRaw uint32
}

// Bytes decodes s two characters at a time. A trailing lone character is
// dropped. Any invalid pair fails the whole decode.
func Bytes(s string) ([]byte, error) {
	runes := []rune(s)
	even := string(runes[:len(runes)/2*2])

	out, err := hex.DecodeString(even)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return out, nil
}

// Split partitions b into consecutive records. A final partial record is discarded.
func Split(b []byte) []Record {
	records := make([]Record, 0, len(b)/RecordSize)
	for i := 0; i+RecordSize <= len(b); i += RecordSize {
		records = append(records, Record{
			FreqRaw: binary.LittleEndian.Uint32(b[i : i+4]),
			VoltRaw: binary.LittleEndian.Uint32(b[i+4 : i+8]),
		})
	}
	return records
}
