package seedcodec

import (
	"encoding/binary"
	"fmt"
)

// Reader walks a byte slice with explicit bounds checks. Every read either
// advances the offset or returns an error wrapping ErrMalformedBlob; reads
// never return zero values for truncated input.
type Reader struct {
	data   []byte
	offset int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset returns the current position in the underlying slice.
func (r *Reader) Offset() int {
	return r.offset
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.offset
}

func (r *Reader) ReadU32() (uint32, error) {
	if r.offset+4 > len(r.data) {
		return 0, fmt.Errorf("%w: u32 at offset %d exceeds blob of %d bytes", ErrMalformedBlob, r.offset, len(r.data))
	}
	val := binary.LittleEndian.Uint32(r.data[r.offset:])
	r.offset += 4
	return val, nil
}

// ReadBytes returns a sub-slice of the underlying data without copying.
// Callers must not mutate the result.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.offset+n > len(r.data) {
		return nil, fmt.Errorf("%w: %d bytes at offset %d exceeds blob of %d bytes", ErrMalformedBlob, n, r.offset, len(r.data))
	}
	val := r.data[r.offset : r.offset+n : r.offset+n]
	r.offset += n
	return val, nil
}

// ReadAddress reads a fixed 32-byte value.
func (r *Reader) ReadAddress() ([32]byte, error) {
	b, err := r.ReadBytes(32)
	if err != nil {
		return [32]byte{}, err
	}
	return [32]byte(b), nil
}
