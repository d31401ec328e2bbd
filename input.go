package fileheaders

import (
	"iter"
	"strings"
	"time"
)

// Mode classifies the request method plus range validity.
type Mode uint8

const (
	// ModeGet is a GET request.
	ModeGet Mode = iota
	// ModeHead is a HEAD request: full headers, no body.
	ModeHead
	// ModeInvalidMethod is any other method.
	ModeInvalidMethod
	// ModeInvalidRange marks a request whose Range header failed to
	// parse or merge.
	ModeInvalidRange
)

// Input is the parsed, read-only context of a single request.
type Input struct {
	cfg            *Config
	mode           Mode
	acceptEncoding AcceptEncoding
	rng            *slice
	ifNoneMatch    []Etag
	ifModified     time.Time

	// Parsed for shape only; the decision table does not consult these
	// yet.
	ifMatch      []Etag
	ifUnmodified time.Time
}

// FromHeaders parses the request method and headers into an Input.
// Header names are matched ASCII case-insensitively and values arrive
// as raw bytes. Malformed conditional headers degrade to "absent" and
// never fail the request; a bad Range header is remembered and turns
// into an InvalidRange outcome at probe time.
func FromHeaders(cfg *Config, method string, headers iter.Seq2[string, []byte]) *Input {
	in := &Input{cfg: cfg, acceptEncoding: identityOnly()}
	switch method {
	case "GET":
		in.mode = ModeGet
	case "HEAD":
		in.mode = ModeHead
	default:
		in.mode = ModeInvalidMethod
		return in
	}

	var (
		ae        = newAcceptEncodingParser()
		rng       rangeParser
		noneMatch noneMatchParser
		match     noneMatchParser
		modified  modifiedParser
		unmod     modifiedParser
	)
	for name, value := range headers {
		switch {
		case strings.EqualFold(name, "Accept-Encoding"):
			ae.addHeader(value)
		case strings.EqualFold(name, "Range"):
			rng.addHeader(value)
		case strings.EqualFold(name, "If-None-Match"):
			noneMatch.addHeader(value)
		case strings.EqualFold(name, "If-Modified-Since"):
			modified.addHeader(value)
		case strings.EqualFold(name, "If-Match"):
			match.addHeader(value)
		case strings.EqualFold(name, "If-Unmodified-Since"):
			unmod.addHeader(value)
		}
	}
	in.acceptEncoding = ae.done()
	if rng.bad {
		in.mode = ModeInvalidRange
	} else {
		in.rng = rng.rng
	}
	in.ifNoneMatch = noneMatch.etags
	in.ifModified = modified.done()
	in.ifMatch = match.etags
	in.ifUnmodified = unmod.done()
	return in
}

// Mode returns the classified request mode.
func (in *Input) Mode() Mode {
	return in.mode
}

// Encodings yields the accepted encodings in preference order. Identity
// is always reachable exactly once.
func (in *Input) Encodings() iter.Seq[Encoding] {
	return in.acceptEncoding.All()
}
