package fileheaders

import (
	"net/http"
	"strings"
	"time"
)

// noneMatchParser collects weak etags from If-None-Match headers. Only
// tags shaped exactly like the ones this engine emits can ever match,
// so strong tags and foreign formats are silently dropped.
type noneMatchParser struct {
	etags []Etag
}

func (p *noneMatchParser) addChunk(chunk string) {
	chunk = strings.TrimLeft(chunk, " ")
	if len(chunk) < etagEncodedLen+4 {
		return
	}
	if chunk[0] != 'W' || chunk[1] != '/' || chunk[2] != '"' ||
		chunk[etagEncodedLen+3] != '"' {
		return
	}
	for i := etagEncodedLen + 4; i < len(chunk); i++ {
		if chunk[i] != ' ' {
			return
		}
	}
	etag, ok := decodeEtag(chunk[3 : etagEncodedLen+3])
	if !ok {
		return
	}
	p.etags = append(p.etags, etag)
}

func (p *noneMatchParser) addHeader(value []byte) {
	for chunk := range strings.SplitSeq(string(value), ",") {
		p.addChunk(chunk)
	}
}

// modifiedParser parses If-Modified-Since (and the same-shaped
// If-Unmodified-Since). A duplicate or malformed header makes the
// conditional non-binding, as if it was never sent.
type modifiedParser struct {
	when time.Time
	bad  bool
}

func (p *modifiedParser) addHeader(value []byte) {
	if p.bad {
		return
	}
	if !p.when.IsZero() {
		// duplicate header
		p.when, p.bad = time.Time{}, true
		return
	}
	t, err := http.ParseTime(string(value))
	if err != nil {
		p.bad = true
		return
	}
	p.when = t
}

func (p *modifiedParser) done() time.Time {
	if p.bad {
		return time.Time{}
	}
	return p.when
}
