package sim

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sys/unix"

	"github.com/wippyai/go-rados/native"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// crc32c continues a raw CRC-32C register without the pre and post
// inversion crc32.Update applies.
func crc32c(seed uint32, p []byte) uint32 {
	return ^crc32.Update(^seed, castagnoli, p)
}

// checksum writes a little endian u32 count followed by one value per chunk
// of data[off:off+length] into out. A zero length runs to the end of data and
// a zero chunk size means a single chunk.
func checksum(data []byte, typ native.ChecksumType, init []byte, off, length, chunkSize uint64, out []byte) int {
	if typ == native.ChecksumXXHash32 {
		return errno(unix.EOPNOTSUPP)
	}
	size := typ.Size()
	if size == 0 || len(init) != size {
		return errno(unix.EINVAL)
	}
	if off > uint64(len(data)) {
		return errno(unix.EINVAL)
	}
	if length == 0 {
		length = uint64(len(data)) - off
	}
	if off+length > uint64(len(data)) {
		return errno(unix.EINVAL)
	}
	if chunkSize == 0 {
		chunkSize = length
	}
	if chunkSize == 0 || length%chunkSize != 0 {
		return errno(unix.EINVAL)
	}

	count := length / chunkSize
	if uint64(len(out)) < 4+count*uint64(size) {
		return errno(unix.ERANGE)
	}

	binary.LittleEndian.PutUint32(out, uint32(count))
	pos := 4
	for i := uint64(0); i < count; i++ {
		chunk := data[off+i*chunkSize : off+(i+1)*chunkSize]
		switch typ {
		case native.ChecksumCRC32C:
			binary.LittleEndian.PutUint32(out[pos:], crc32c(binary.LittleEndian.Uint32(init), chunk))
		case native.ChecksumXXHash64:
			d := xxhash.NewWithSeed(binary.LittleEndian.Uint64(init))
			_, _ = d.Write(chunk)
			binary.LittleEndian.PutUint64(out[pos:], d.Sum64())
		default:
			return errno(unix.EOPNOTSUPP)
		}
		pos += size
	}
	return 0
}
