package fileheaders

import (
	"fmt"
	"io"
	"iter"
	"net/http"
	"os"
	"slices"
	"time"
)

// minModTime filters out timestamp sentinels. Nix stores pin the
// modification date to 1970-01-01 00:00:01 and zip archives clamp dates
// to 1980-01-01, so anything before 1990-01-01 is treated as "no
// sensible date".
var minModTime = time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)

// contentRange is the resolved byte window within a file: absolute
// start, inclusive end, and the full file size.
type contentRange struct {
	start, end, size uint64
}

func (r contentRange) String() string {
	if r.size == 0 {
		return "bytes */0"
	}
	return fmt.Sprintf("bytes %d-%d/%d", r.start, r.end, r.size)
}

// Head is the immutable response metadata: the headers to emit plus the
// exact number of body bytes they promise.
type Head struct {
	cfg           *Config
	encoding      Encoding
	contentLength uint64
	contentType   string
	lastModified  time.Time
	etag          *Etag
	contentRange  *contentRange
	notModified   bool
}

// ContentLength is the number of body bytes the response carries; zero
// for 304 responses. For HEAD it is the length a GET of the same
// request would carry. It is deliberately not part of Headers so the
// transport layer can choose its own framing.
func (h *Head) ContentLength() uint64 {
	return h.contentLength
}

// Headers yields the response headers in emission order, skipping
// absent ones. A not-modified head carries only the validators.
func (h *Head) Headers() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if !h.lastModified.IsZero() {
			if !yield("Last-Modified", h.lastModified.UTC().Format(http.TimeFormat)) {
				return
			}
		}
		if h.etag != nil {
			if !yield("ETag", h.etag.String()) {
				return
			}
		}
		if h.notModified {
			return
		}
		if h.encoding != Identity {
			if !yield("Content-Encoding", h.encoding.String()) {
				return
			}
		}
		if !yield("Accept-Ranges", "bytes") {
			return
		}
		if h.contentRange != nil {
			if !yield("Content-Range", h.contentRange.String()) {
				return
			}
		}
		if h.contentType != "" {
			ct := h.contentType
			if h.cfg.textCharset != "" && isTextType(h.contentType) {
				ct += "; charset=" + h.cfg.textCharset
			}
			if !yield("Content-Type", ct) {
				return
			}
		}
	}
}

// respond turns the opened file plus the parsed conditions into the
// final outcome: the conditional short-circuit, range resolution, and
// outcome selection.
func (in *Input) respond(file *os.File, fi os.FileInfo, encoding Encoding, mimeType string) (Outcome, error) {
	cfg := in.cfg
	head := &Head{cfg: cfg, encoding: encoding}

	if cfg.lastModified {
		if mod := fi.ModTime(); !mod.Before(minModTime) {
			head.lastModified = mod
		}
	}
	if cfg.etag {
		etag := etagFromFileInfo(fi)
		head.etag = &etag
	}

	if in.conditionHolds(head) {
		file.Close()
		head.notModified = true
		return Outcome{Kind: NotModified, Head: head}, nil
	}

	size := uint64(fi.Size())
	if in.rng != nil {
		cr, ok := resolveRange(*in.rng, size)
		if !ok {
			file.Close()
			return Outcome{Kind: InvalidRange}, nil
		}
		head.contentRange = &cr
		if cr.size == 0 {
			head.contentLength = 0
		} else {
			head.contentLength = cr.end - cr.start + 1
		}
	} else {
		head.contentLength = size
	}
	if cfg.contentType {
		head.contentType = mimeType
	}

	if in.mode == ModeHead {
		file.Close()
		return Outcome{Kind: FileHead, Head: head}, nil
	}
	body, err := newBodyReader(head, file)
	if err != nil {
		return Outcome{}, err
	}
	if in.rng != nil {
		return Outcome{Kind: FileRange, Head: head, Body: body}, nil
	}
	return Outcome{Kind: File, Head: head, Body: body}, nil
}

// conditionHolds reports whether the request conditions short-circuit
// to a 304. A presented If-None-Match is definitive: when it is
// non-empty, If-Modified-Since is not consulted at all.
func (in *Input) conditionHolds(head *Head) bool {
	if len(in.ifNoneMatch) > 0 {
		return head.etag != nil && slices.Contains(in.ifNoneMatch, *head.etag)
	}
	if in.ifModified.IsZero() || head.lastModified.IsZero() {
		return false
	}
	return !head.lastModified.After(in.ifModified)
}

// resolveRange maps a parsed slice onto a concrete byte window of a
// file with the given size. From-bounded slices that start at or past
// the end are unsatisfiable; a last-n slice always satisfies, clamped
// to the whole file.
func resolveRange(s slice, size uint64) (contentRange, bool) {
	switch s.kind {
	case sliceFromTo:
		if s.a >= size {
			return contentRange{}, false
		}
		n := size - s.a
		if span := s.b - s.a + 1; span != 0 && span < n {
			n = span
		}
		return contentRange{start: s.a, end: s.a + n - 1, size: size}, true
	case sliceAllFrom:
		if s.a >= size {
			return contentRange{}, false
		}
		return contentRange{start: s.a, end: size - 1, size: size}, true
	default: // sliceLast
		if s.a >= size {
			return contentRange{start: 0, end: max(size, 1) - 1, size: size}, true
		}
		return contentRange{start: size - s.a, end: size - 1, size: size}, true
	}
}

// bodyChunk is the read granularity; each reader owns one scratch
// buffer of this size.
const bodyChunk = 64 << 10

// BodyReader owns the open file and streams exactly the bytes its Head
// promises. ReadChunk performs blocking file I/O and must run where
// blocking is acceptable; the rewind-on-short-write contract makes each
// call independently safe, so a non-blocking writer on another
// scheduler can pull chunks without losing or duplicating bytes.
type BodyReader struct {
	head      *Head
	file      *os.File
	bytesLeft uint64
	buf       []byte
}

func newBodyReader(head *Head, file *os.File) (*BodyReader, error) {
	if cr := head.contentRange; cr != nil && cr.start != 0 {
		if _, err := file.Seek(int64(cr.start), io.SeekStart); err != nil {
			file.Close()
			return nil, err
		}
	}
	return &BodyReader{
		head:      head,
		file:      file,
		bytesLeft: head.contentLength,
		buf:       make([]byte, bodyChunk),
	}, nil
}

// Head returns the response metadata this body belongs to.
func (b *BodyReader) Head() *Head {
	return b.head
}

// ReadChunk reads the next chunk of the body and writes it into w,
// returning the number of bytes w accepted. On a short write the file
// is sought back over the unaccepted tail so the next call re-reads it;
// on a write error the whole chunk is sought back and the error is
// surfaced, leaving the reader resumable after transient conditions.
// It returns 0, nil once the body is complete.
func (b *BodyReader) ReadChunk(w io.Writer) (int, error) {
	if b.bytesLeft == 0 {
		return 0, nil
	}
	buf := b.buf[:min(uint64(len(b.buf)), b.bytesLeft)]
	r, err := b.file.Read(buf)
	if r == 0 {
		if err == io.EOF {
			// The file shrank after the headers promised more bytes.
			return 0, io.ErrUnexpectedEOF
		}
		return 0, err
	}
	n, werr := w.Write(buf[:r])
	if werr != nil {
		if _, serr := b.file.Seek(int64(-r), io.SeekCurrent); serr != nil {
			return 0, serr
		}
		return 0, werr
	}
	if n < r {
		if _, serr := b.file.Seek(int64(n-r), io.SeekCurrent); serr != nil {
			return n, serr
		}
	}
	b.bytesLeft -= uint64(n)
	return n, nil
}

// Close releases the underlying file. Dropping a response mid-stream is
// cancellation; there is nothing else to unwind.
func (b *BodyReader) Close() error {
	return b.file.Close()
}
