package rados

import (
	"encoding/binary"

	"github.com/wippyai/go-rados/buffer"
	"github.com/wippyai/go-rados/errors"
)

// defaultChecksumCount sizes the result buffer when the number of chunks is
// not known up front.
const defaultChecksumCount = 64

// packChecksumInit encodes the seed in the little endian width of typ.
func packChecksumInit(typ ChecksumType, init uint64) ([]byte, error) {
	switch typ.Size() {
	case 4:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(init))
		return b, nil
	case 8:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, init)
		return b, nil
	}
	return nil, errors.New(errors.PhaseObject, errors.KindInvalidInput).
		Op("rados_checksum").
		Value(int(typ)).
		Detail("unknown checksum type %s", typ).
		Build()
}

// checksumResultSize returns the bytes needed for the checksums of length
// bytes in chunks of chunkSize, or zero when that depends on the object.
func checksumResultSize(typ ChecksumType, length, chunkSize uint64) int {
	switch {
	case chunkSize == 0:
		return 4 + typ.Size()
	case length == 0:
		return 0
	}
	count := (length + chunkSize - 1) / chunkSize
	return 4 + int(count)*typ.Size()
}

// unpackChecksums decodes a little endian u32 count followed by count values.
func unpackChecksums(op string, typ ChecksumType, out []byte) ([]uint64, error) {
	if len(out) < 4 {
		return nil, errors.MalformedOutput(errors.PhaseObject, op, "checksum output shorter than its count")
	}
	count := binary.LittleEndian.Uint32(out)
	size := typ.Size()
	if uint64(len(out)-4) < uint64(count)*uint64(size) {
		return nil, errors.MalformedOutput(errors.PhaseObject, op,
			"checksum count exceeds output buffer")
	}

	sums := make([]uint64, count)
	for i := range sums {
		p := out[4+i*size:]
		if size == 4 {
			sums[i] = uint64(binary.LittleEndian.Uint32(p))
		} else {
			sums[i] = binary.LittleEndian.Uint64(p)
		}
	}
	return sums, nil
}

// Checksum computes checksums over length bytes at off, one per chunk of
// chunkSize bytes. A zero length runs to the end of the object and a zero
// chunk size yields a single checksum. 32 bit algorithms use the low half of
// init.
func (o *Object) Checksum(typ ChecksumType, init uint64, off, length, chunkSize uint64) ([]uint64, error) {
	const op = "rados_checksum"
	h, err := o.io.handle()
	if err != nil {
		return nil, err
	}
	seed, err := packChecksumInit(typ, init)
	if err != nil {
		return nil, err
	}

	initial := checksumResultSize(typ, length, chunkSize)
	if initial == 0 {
		initial = 4 + defaultChecksumCount*typ.Size()
	}
	buf, _, err := buffer.Retry(initial, func(b *buffer.Buffer) int {
		return o.lib().Checksum(h, o.oid, typ, seed, length, off, chunkSize, b.Bytes())
	}, o.io.env.retryOpts(errors.PhaseObject, op)...)
	if err != nil {
		return nil, err
	}
	return unpackChecksums(op, typ, buf.Bytes())
}
