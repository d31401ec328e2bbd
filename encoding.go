package fileheaders

import (
	"cmp"
	"iter"
	"slices"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Encoding is a content coding the engine knows how to serve. The set
// is closed: only codings with useful pre-compressed siblings and broad
// client support are included.
type Encoding uint8

const (
	// Brotli is transferred as "br" and stored with the ".br" suffix.
	Brotli Encoding = iota
	// Gzip is transferred as "gzip" and stored with the ".gz" suffix.
	Gzip
	// Identity means no encoding.
	Identity
)

// Suffix returns the filename suffix used when probing for a
// pre-compressed sibling in this encoding.
func (e Encoding) Suffix() string {
	switch e {
	case Brotli:
		return ".br"
	case Gzip:
		return ".gz"
	default:
		return ""
	}
}

// String returns the token used in Accept-Encoding and
// Content-Encoding.
func (e Encoding) String() string {
	switch e {
	case Brotli:
		return "br"
	case Gzip:
		return "gzip"
	default:
		return "identity"
	}
}

// AcceptEncoding is the normalized encoding preference of one request:
// up to three accepted encodings, best first.
type AcceptEncoding struct {
	ordered [3]Encoding
	// allowAny flips to false on "*;q=0". Kept for a future decision on
	// making Identity elidable; not consulted yet.
	allowAny bool
}

func identityOnly() AcceptEncoding {
	return AcceptEncoding{
		ordered:  [3]Encoding{Identity, Identity, Identity},
		allowAny: true,
	}
}

// All yields the accepted encodings in preference order. Identity is
// always yielded exactly once: at its accepted position when the client
// listed it, as the final fallback otherwise.
func (ae AcceptEncoding) All() iter.Seq[Encoding] {
	return func(yield func(Encoding) bool) {
		seen := false
		for _, e := range ae.ordered {
			if e == Identity {
				if seen {
					continue
				}
				seen = true
			}
			if !yield(e) {
				return
			}
		}
		if !seen {
			yield(Identity)
		}
	}
}

type encodingQ struct {
	enc Encoding
	q   uint16 // thousandths, 0..1000
}

// acceptEncodingParser accumulates Accept-Encoding header values. It
// drops unsupported and malformed tokens and keeps only the ones it can
// serve.
type acceptEncodingParser struct {
	buf      []encodingQ
	allowAny bool
}

func newAcceptEncodingParser() acceptEncodingParser {
	return acceptEncodingParser{allowAny: true}
}

// parseQ parses a ";q=..." parameter into thousandths. A missing
// parameter means 1000. The grammar is strict; any deviation rejects
// the whole token.
func parseQ(param string, present bool) (uint16, bool) {
	if !present {
		return 1000, true
	}
	s := strings.TrimSpace(param)
	if len(s) < 3 || len(s) > 7 || s[0] != 'q' || s[1] != '=' {
		return 0, false
	}
	switch s[2] {
	case '1':
		if len(s) == 3 {
			return 1000, true
		}
		if s[3] != '.' {
			return 0, false
		}
		for i := 4; i < len(s); i++ {
			if s[i] != '0' {
				return 0, false
			}
		}
		return 1000, true
	case '0':
		if len(s) == 3 {
			return 0, true
		}
		if s[3] != '.' {
			return 0, false
		}
		var q uint16
		scale := uint16(100)
		for i := 4; i < len(s); i++ {
			c := s[i]
			if c < '0' || c > '9' {
				return 0, false
			}
			q += uint16(c-'0') * scale
			scale /= 10
		}
		return q, true
	}
	return 0, false
}

func (p *acceptEncodingParser) addChunk(chunk string) {
	tok, param, hasParam := strings.Cut(chunk, ";")
	tok = strings.TrimSpace(tok)
	for _, r := range tok {
		if !httpguts.IsTokenRune(r) {
			return
		}
	}
	var enc Encoding
	var wildcard bool
	switch tok {
	case "identity":
		enc = Identity
	case "br":
		enc = Brotli
	case "gzip":
		enc = Gzip
	case "*":
		wildcard = true
	default:
		return
	}
	q, ok := parseQ(param, hasParam)
	if !ok {
		return
	}
	switch {
	case wildcard && q == 0:
		p.allowAny = false
	case wildcard:
		// "*" with a nonzero q adds nothing we can act on.
	default:
		p.buf = append(p.buf, encodingQ{enc, q})
	}
}

func (p *acceptEncodingParser) addHeader(value []byte) {
	for chunk := range strings.SplitSeq(string(value), ",") {
		p.addChunk(chunk)
	}
}

// done sorts by q descending, breaking ties toward the better-
// compressing encoding, and keeps the first three acceptable entries.
// Unfilled slots pad with Identity.
func (p *acceptEncodingParser) done() AcceptEncoding {
	slices.SortStableFunc(p.buf, func(a, b encodingQ) int {
		if c := cmp.Compare(b.q, a.q); c != 0 {
			return c
		}
		return cmp.Compare(a.enc, b.enc)
	})
	ae := identityOnly()
	ae.allowAny = p.allowAny
	i := 0
	for _, eq := range p.buf {
		if eq.q == 0 {
			continue
		}
		if i == len(ae.ordered) {
			break
		}
		ae.ordered[i] = eq.enc
		i++
	}
	return ae
}
