// Package wire frames cached payloads with the generation they were written
// under so stale or foreign entries can be detected on read.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
)

const version byte = 2

const headerLen = 4 + 1 + 8 + 4 + 4

var (
	ErrCorrupt = errors.New("recordcache: corrupt entry")
	magic4     = [...]byte{'R', 'C', 'R', 'D'}
)

// Encode frames payload as:
//
//	magic(4) | ver(1) | gen(u64 be) | crc32(u32 be, IEEE of payload) | vlen(u32 be) | payload(vlen)
func Encode(gen uint64, payload []byte) []byte {
	b := make([]byte, headerLen+len(payload))
	copy(b, magic4[:])
	b[4] = version
	binary.BigEndian.PutUint64(b[5:13], gen)
	binary.BigEndian.PutUint32(b[13:17], crc32.ChecksumIEEE(payload))
	binary.BigEndian.PutUint32(b[17:21], uint32(len(payload)))
	copy(b[headerLen:], payload)
	return b
}

// Decode validates the frame and returns its generation and payload. The
// payload aliases b.
func Decode(b []byte) (gen uint64, payload []byte, err error) {
	if len(b) < headerLen || !bytes.Equal(b[:4], magic4[:]) || b[4] != version {
		return 0, nil, ErrCorrupt
	}
	gen = binary.BigEndian.Uint64(b[5:13])
	sum := binary.BigEndian.Uint32(b[13:17])
	vlen := int(binary.BigEndian.Uint32(b[17:21]))
	if vlen != len(b)-headerLen {
		return 0, nil, ErrCorrupt
	}
	payload = b[headerLen:]
	if crc32.ChecksumIEEE(payload) != sum {
		return 0, nil, ErrCorrupt
	}
	return gen, payload, nil
}
