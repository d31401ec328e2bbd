package fileheaders

import (
	"encoding/base64"
	"encoding/binary"
	"io/fs"
	"time"

	"golang.org/x/crypto/blake2b"
)

const (
	etagLen        = 12
	etagEncodedLen = 16
)

var etagEncoding = base64.RawURLEncoding

// Etag identifies one version of one file. It is derived from stable
// filesystem identity, so two processes on the same host produce the
// same tag and any change to the file invalidates it.
type Etag [etagLen]byte

// etagFromFileInfo digests the canonical metadata of a file: size,
// modification time, a zeroed creation-time slot, and on linux the
// device, inode, and ctime as well, since the modification date alone
// is not always reliable. Other platforms, non-linux unix systems
// included, digest without those extras. All fields are written
// big-endian.
func etagFromFileInfo(fi fs.FileInfo) Etag {
	h, err := blake2b.New(etagLen, nil)
	if err != nil {
		// unreachable: the digest size is a constant within range
		panic(err)
	}
	var buf [8]byte
	put64 := func(v uint64) {
		binary.BigEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	put32 := func(v uint32) {
		binary.BigEndian.PutUint32(buf[:4], v)
		h.Write(buf[:4])
	}
	put64(uint64(fi.Size()))
	secs, nanos := splitUnixTime(fi.ModTime())
	put64(secs)
	put32(nanos)
	// Creation time is not surfaced portably; the linux extras below
	// cover the identity changes it would catch.
	put64(0)
	put32(0)
	etagSys(put64, fi)
	var e Etag
	h.Sum(e[:0])
	return e
}

func splitUnixTime(t time.Time) (uint64, uint32) {
	if t.IsZero() || t.Unix() < 0 {
		return 0, 0
	}
	return uint64(t.Unix()), uint32(t.Nanosecond())
}

// String renders the tag the way it is sent on the wire: a weak tag
// wrapping 16 url-safe base64 characters.
func (e Etag) String() string {
	return `W/"` + etagEncoding.EncodeToString(e[:]) + `"`
}

func decodeEtag(s string) (Etag, bool) {
	if len(s) != etagEncodedLen {
		return Etag{}, false
	}
	b, err := etagEncoding.DecodeString(s)
	if err != nil || len(b) != etagLen {
		return Etag{}, false
	}
	var e Etag
	copy(e[:], b)
	return e, true
}
