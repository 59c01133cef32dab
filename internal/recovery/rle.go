package recovery

import "kernelforge/internal/types"

// Compress run-length encodes raw bytes per spec.md §6: each run of the
// same byte repeated n times (2 <= n <= 255) becomes the three bytes
// 0x00, n, byte; literal bytes that are not 0x00 are copied verbatim.
// Compress never itself emits an invalid stream (a literal 0x00 cannot
// occur because every run of length >= 1 of the byte 0x00 is always
// emitted via the 0x00,n,byte form, even for n == 1).
func Compress(data []byte) []byte {
	out := make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		b := data[i]
		runLen := 1
		for i+runLen < len(data) && data[i+runLen] == b && runLen < 255 {
			runLen++
		}
		switch {
		case b == 0x00:
			// Every run of 0x00 must use the escape form, even length 1,
			// since a bare 0x00 literal is not representable.
			out = append(out, 0x00, byte(runLen), b)
		case runLen >= 2:
			out = append(out, 0x00, byte(runLen), b)
		default:
			out = append(out, b)
		}
		i += runLen
	}
	return out
}

// Decompress reverses Compress. A literal 0x00 byte not followed by a
// valid (n, value) pair with 2 <= n <= 255 (or, per Compress, any n >= 1
// for the 0x00 run form) is an error.
func Decompress(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		b := data[i]
		if b != 0x00 {
			out = append(out, b)
			i++
			continue
		}
		if i+2 >= len(data) {
			return nil, types.Wrap(types.ErrValidationFailure, "truncated RLE run at offset %d", i)
		}
		n := data[i+1]
		value := data[i+2]
		if n < 1 || (n == 1 && value != 0x00) {
			return nil, types.Wrap(types.ErrValidationFailure, "invalid RLE run length %d at offset %d", n, i)
		}
		for k := byte(0); k < n; k++ {
			out = append(out, value)
		}
		i += 3
	}
	return out, nil
}

// CompressIfSmaller returns the RLE-compressed form of data and true
// only when compression shrinks the payload, per spec.md §6
// "compression is lossless and only applied when it shrinks the
// payload."
func CompressIfSmaller(data []byte) ([]byte, bool) {
	compressed := Compress(data)
	if len(compressed) < len(data) {
		return compressed, true
	}
	return data, false
}
