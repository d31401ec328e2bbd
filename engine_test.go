package fileheaders

import (
	"bytes"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func requestHeaders(pairs ...string) iter.Seq2[string, []byte] {
	return func(yield func(string, []byte) bool) {
		for i := 0; i < len(pairs); i += 2 {
			if !yield(pairs[i], []byte(pairs[i+1])) {
				return
			}
		}
	}
}

func probe(t *testing.T, cfg *Config, method, base string, pairs ...string) Outcome {
	t.Helper()
	in := FromHeaders(cfg, method, requestHeaders(pairs...))
	out, err := in.ProbeFile(base)
	if err != nil {
		t.Fatalf("unexpected probe error: %v", err)
	}
	return out
}

func headerMap(h *Head) map[string]string {
	m := make(map[string]string)
	for name, value := range h.Headers() {
		m[name] = value
	}
	return m
}

func headerNames(h *Head) []string {
	var names []string
	for name := range h.Headers() {
		names = append(names, name)
	}
	return names
}

func readAll(t *testing.T, body *BodyReader) []byte {
	t.Helper()
	defer body.Close()
	var buf bytes.Buffer
	for {
		n, err := body.ReadChunk(&buf)
		if err != nil {
			t.Fatalf("unexpected read error: %v", err)
		}
		if n == 0 {
			return buf.Bytes()
		}
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDirectoryIndex(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("x"), 42)
	writeFile(t, filepath.Join(dir, "index.html"), content)
	mtime := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	if err := os.Chtimes(filepath.Join(dir, "index.html"), mtime, mtime); err != nil {
		t.Fatal(err)
	}

	cfg := NewConfig().AddIndexFile("index.html").Done()
	out := probe(t, cfg, "GET", dir)
	if out.Kind != File || out.Status() != 200 {
		t.Fatalf("incorrect outcome: %v (%d)", out.Kind, out.Status())
	}
	if got := out.Head.ContentLength(); got != 42 {
		t.Errorf("incorrect content length: %d", got)
	}
	h := headerMap(out.Head)
	if h["Last-Modified"] != "Sun, 01 Jan 2023 00:00:00 GMT" {
		t.Errorf("incorrect last modified: %q", h["Last-Modified"])
	}
	if h["ETag"] == "" {
		t.Errorf("missing etag")
	}
	if h["Content-Type"] != "text/html; charset=utf-8" {
		t.Errorf("incorrect content type: %q", h["Content-Type"])
	}
	if got := readAll(t, out.Body); !bytes.Equal(got, content) {
		t.Errorf("incorrect body: %d bytes", len(got))
	}
}

func TestDirectoryNoIndex(t *testing.T) {
	cfg := NewConfig().Done()
	out := probe(t, cfg, "GET", t.TempDir())
	if out.Kind != Directory || out.Status() != 404 {
		t.Fatalf("incorrect outcome: %v (%d)", out.Kind, out.Status())
	}
}

func TestEncodingVariant(t *testing.T) {
	dir := t.TempDir()
	brData := bytes.Repeat([]byte("b"), 100)
	gzData := bytes.Repeat([]byte("g"), 120)
	idData := bytes.Repeat([]byte("i"), 500)
	writeFile(t, filepath.Join(dir, "a.txt"), idData)
	writeFile(t, filepath.Join(dir, "a.txt.br"), brData)
	writeFile(t, filepath.Join(dir, "a.txt.gz"), gzData)

	cfg := NewConfig().Done()
	base := filepath.Join(dir, "a.txt")

	t.Run("Brotli", func(t *testing.T) {
		out := probe(t, cfg, "GET", base, "Accept-Encoding", "br, gzip")
		if out.Kind != File {
			t.Fatalf("incorrect outcome: %v", out.Kind)
		}
		h := headerMap(out.Head)
		if h["Content-Encoding"] != "br" {
			t.Errorf("incorrect content encoding: %q", h["Content-Encoding"])
		}
		if got := out.Head.ContentLength(); got != 100 {
			t.Errorf("incorrect content length: %d", got)
		}
		if got := readAll(t, out.Body); !bytes.Equal(got, brData) {
			t.Errorf("incorrect body: %d bytes", len(got))
		}
	})
	t.Run("GzipOnly", func(t *testing.T) {
		out := probe(t, cfg, "GET", base, "Accept-Encoding", "gzip")
		h := headerMap(out.Head)
		if h["Content-Encoding"] != "gzip" {
			t.Errorf("incorrect content encoding: %q", h["Content-Encoding"])
		}
		if got := readAll(t, out.Body); !bytes.Equal(got, gzData) {
			t.Errorf("incorrect body: %d bytes", len(got))
		}
	})
	t.Run("Identity", func(t *testing.T) {
		out := probe(t, cfg, "GET", base)
		h := headerMap(out.Head)
		if _, ok := h["Content-Encoding"]; ok {
			t.Errorf("unexpected content encoding: %q", h["Content-Encoding"])
		}
		if got := readAll(t, out.Body); !bytes.Equal(got, idData) {
			t.Errorf("incorrect body: %d bytes", len(got))
		}
	})
	t.Run("NeverForBinary", func(t *testing.T) {
		writeFile(t, filepath.Join(dir, "a.bin"), idData)
		writeFile(t, filepath.Join(dir, "a.bin.br"), brData)
		out := probe(t, cfg, "GET", filepath.Join(dir, "a.bin"), "Accept-Encoding", "br")
		h := headerMap(out.Head)
		if _, ok := h["Content-Encoding"]; ok {
			t.Errorf("variant served for binary file under text-only policy")
		}
		out.Body.Close()
	})
	t.Run("AllFiles", func(t *testing.T) {
		cfg := NewConfig().EncodingsOnAllFiles().Done()
		out := probe(t, cfg, "GET", filepath.Join(dir, "a.bin"), "Accept-Encoding", "br")
		h := headerMap(out.Head)
		if h["Content-Encoding"] != "br" {
			t.Errorf("incorrect content encoding: %q", h["Content-Encoding"])
		}
		out.Body.Close()
	})
}

func TestRangeRequests(t *testing.T) {
	dir := t.TempDir()
	data := make([]byte, 10000)
	for i := range data {
		data[i] = byte(i)
	}
	writeFile(t, filepath.Join(dir, "big.bin"), data)
	cfg := NewConfig().Done()
	base := filepath.Join(dir, "big.bin")

	t.Run("Merged", func(t *testing.T) {
		out := probe(t, cfg, "GET", base, "Range", "bytes=0-999, 1000-2000")
		if out.Kind != FileRange || out.Status() != 206 {
			t.Fatalf("incorrect outcome: %v (%d)", out.Kind, out.Status())
		}
		h := headerMap(out.Head)
		if h["Content-Range"] != "bytes 0-2000/10000" {
			t.Errorf("incorrect content range: %q", h["Content-Range"])
		}
		if got := out.Head.ContentLength(); got != 2001 {
			t.Errorf("incorrect content length: %d", got)
		}
		if got := readAll(t, out.Body); !bytes.Equal(got, data[:2001]) {
			t.Errorf("incorrect body: %d bytes", len(got))
		}
	})
	t.Run("Disjoint", func(t *testing.T) {
		out := probe(t, cfg, "GET", base, "Range", "bytes=0-500,1000-2000")
		if out.Kind != InvalidRange || out.Status() != 416 {
			t.Fatalf("incorrect outcome: %v (%d)", out.Kind, out.Status())
		}
		if out.Body != nil {
			t.Errorf("unexpected body")
		}
	})
	t.Run("Suffix", func(t *testing.T) {
		out := probe(t, cfg, "GET", base, "Range", "bytes=-100")
		h := headerMap(out.Head)
		if h["Content-Range"] != "bytes 9900-9999/10000" {
			t.Errorf("incorrect content range: %q", h["Content-Range"])
		}
		if got := readAll(t, out.Body); !bytes.Equal(got, data[9900:]) {
			t.Errorf("incorrect body: %d bytes", len(got))
		}
	})
	t.Run("From", func(t *testing.T) {
		out := probe(t, cfg, "GET", base, "Range", "bytes=9000-")
		if got := out.Head.ContentLength(); got != 1000 {
			t.Errorf("incorrect content length: %d", got)
		}
		if got := readAll(t, out.Body); !bytes.Equal(got, data[9000:]) {
			t.Errorf("incorrect body: %d bytes", len(got))
		}
	})
	t.Run("TruncatedTo", func(t *testing.T) {
		// the to bound clamps to the file size
		out := probe(t, cfg, "GET", base, "Range", "bytes=9000-20000")
		h := headerMap(out.Head)
		if h["Content-Range"] != "bytes 9000-9999/10000" {
			t.Errorf("incorrect content range: %q", h["Content-Range"])
		}
		out.Body.Close()
	})
	t.Run("StartPastEnd", func(t *testing.T) {
		out := probe(t, cfg, "GET", base, "Range", "bytes=10000-10001")
		if out.Kind != InvalidRange {
			t.Fatalf("incorrect outcome: %v", out.Kind)
		}
	})
	t.Run("EmptyFileSuffix", func(t *testing.T) {
		writeFile(t, filepath.Join(dir, "empty"), nil)
		out := probe(t, cfg, "GET", filepath.Join(dir, "empty"), "Range", "bytes=-100")
		if out.Kind != FileRange || out.Status() != 206 {
			t.Fatalf("incorrect outcome: %v (%d)", out.Kind, out.Status())
		}
		h := headerMap(out.Head)
		if h["Content-Range"] != "bytes */0" {
			t.Errorf("incorrect content range: %q", h["Content-Range"])
		}
		if got := out.Head.ContentLength(); got != 0 {
			t.Errorf("incorrect content length: %d", got)
		}
		if got := readAll(t, out.Body); len(got) != 0 {
			t.Errorf("incorrect body: %d bytes", len(got))
		}
	})
}

func TestConditionals(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("hello"))
	mtime := time.Date(2023, time.June, 15, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(filepath.Join(dir, "a.txt"), mtime, mtime); err != nil {
		t.Fatal(err)
	}
	cfg := NewConfig().Done()
	base := filepath.Join(dir, "a.txt")

	current := probe(t, cfg, "GET", base)
	etag := headerMap(current.Head)["ETag"]
	current.Body.Close()

	t.Run("NoneMatchHit", func(t *testing.T) {
		out := probe(t, cfg, "HEAD", base, "If-None-Match", etag)
		if out.Kind != NotModified || out.Status() != 304 {
			t.Fatalf("incorrect outcome: %v (%d)", out.Kind, out.Status())
		}
		if got := out.Head.ContentLength(); got != 0 {
			t.Errorf("incorrect content length: %d", got)
		}
		names := headerNames(out.Head)
		if !slices.Equal(names, []string{"Last-Modified", "ETag"}) {
			t.Errorf("incorrect headers for 304: %q", names)
		}
	})
	t.Run("NoneMatchMiss", func(t *testing.T) {
		out := probe(t, cfg, "GET", base, "If-None-Match", `W/"AAAAAAAAAAAAAAAA"`)
		if out.Kind != File {
			t.Fatalf("incorrect outcome: %v", out.Kind)
		}
		out.Body.Close()
	})
	t.Run("ModifiedSinceHit", func(t *testing.T) {
		out := probe(t, cfg, "GET", base,
			"If-Modified-Since", "Thu, 15 Jun 2023 12:00:00 GMT")
		if out.Kind != NotModified {
			t.Fatalf("incorrect outcome: %v", out.Kind)
		}
	})
	t.Run("ModifiedSinceMiss", func(t *testing.T) {
		out := probe(t, cfg, "GET", base,
			"If-Modified-Since", "Thu, 15 Jun 2023 11:59:59 GMT")
		if out.Kind != File {
			t.Fatalf("incorrect outcome: %v", out.Kind)
		}
		out.Body.Close()
	})
	t.Run("NoneMatchTakesPrecedence", func(t *testing.T) {
		// a presented If-None-Match that misses suppresses the
		// If-Modified-Since check entirely
		out := probe(t, cfg, "GET", base,
			"If-None-Match", `W/"AAAAAAAAAAAAAAAA"`,
			"If-Modified-Since", "Thu, 15 Jun 2023 12:00:00 GMT")
		if out.Kind != File {
			t.Fatalf("incorrect outcome: %v", out.Kind)
		}
		out.Body.Close()
	})
	t.Run("EtagDisabled", func(t *testing.T) {
		cfg := NewConfig().Etag(false).Done()
		out := probe(t, cfg, "GET", base, "If-None-Match", etag)
		if out.Kind != File {
			t.Fatalf("incorrect outcome: %v", out.Kind)
		}
		if h := headerMap(out.Head); h["ETag"] != "" {
			t.Errorf("unexpected etag: %q", h["ETag"])
		}
		out.Body.Close()
	})
}

func TestModTimeFloor(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "old.txt"), []byte("x"))
	epoch := time.Unix(1, 0)
	if err := os.Chtimes(filepath.Join(dir, "old.txt"), epoch, epoch); err != nil {
		t.Fatal(err)
	}
	cfg := NewConfig().Done()
	out := probe(t, cfg, "GET", filepath.Join(dir, "old.txt"))
	if h := headerMap(out.Head); h["Last-Modified"] != "" {
		t.Errorf("sentinel date emitted: %q", h["Last-Modified"])
	}
	// and it cannot satisfy If-Modified-Since
	out.Body.Close()
	out = probe(t, cfg, "GET", filepath.Join(dir, "old.txt"),
		"If-Modified-Since", "Thu, 15 Jun 2023 12:00:00 GMT")
	if out.Kind != File {
		t.Fatalf("incorrect outcome: %v", out.Kind)
	}
	out.Body.Close()
}

func TestMethodOutcomes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("hello"))
	cfg := NewConfig().Done()
	base := filepath.Join(dir, "a.txt")

	t.Run("Head", func(t *testing.T) {
		out := probe(t, cfg, "HEAD", base)
		if out.Kind != FileHead || out.Status() != 200 {
			t.Fatalf("incorrect outcome: %v (%d)", out.Kind, out.Status())
		}
		if out.Body != nil {
			t.Errorf("unexpected body for HEAD")
		}
		if got := out.Head.ContentLength(); got != 5 {
			t.Errorf("incorrect content length: %d", got)
		}
	})
	t.Run("Post", func(t *testing.T) {
		out := probe(t, cfg, "POST", base)
		if out.Kind != InvalidMethod || out.Status() != 405 {
			t.Fatalf("incorrect outcome: %v (%d)", out.Kind, out.Status())
		}
	})
	t.Run("Missing", func(t *testing.T) {
		out := probe(t, cfg, "GET", filepath.Join(dir, "missing"))
		if out.Kind != NotFound || out.Status() != 404 {
			t.Fatalf("incorrect outcome: %v (%d)", out.Kind, out.Status())
		}
	})
	t.Run("BadRangeHeader", func(t *testing.T) {
		out := probe(t, cfg, "GET", base, "Range", "bytes=zzz")
		if out.Kind != InvalidRange || out.Status() != 416 {
			t.Fatalf("incorrect outcome: %v (%d)", out.Kind, out.Status())
		}
	})
}

func TestVariantIsDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("hello"))
	if err := os.Mkdir(filepath.Join(dir, "a.txt.br"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := NewConfig().Done()
	out := probe(t, cfg, "GET", filepath.Join(dir, "a.txt"), "Accept-Encoding", "br")
	if out.Kind != NotFound {
		t.Fatalf("incorrect outcome: %v", out.Kind)
	}
}

func TestHeaderEmission(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("hello"))
	writeFile(t, filepath.Join(dir, "a.txt.gz"), []byte("gz"))
	base := filepath.Join(dir, "a.txt")

	t.Run("Order", func(t *testing.T) {
		cfg := NewConfig().Done()
		out := probe(t, cfg, "GET", base, "Accept-Encoding", "gzip", "Range", "bytes=0-0")
		defer out.Body.Close()
		names := headerNames(out.Head)
		want := []string{"Last-Modified", "ETag", "Content-Encoding",
			"Accept-Ranges", "Content-Range", "Content-Type"}
		if !slices.Equal(names, want) {
			t.Errorf("incorrect order: %q", names)
		}
	})
	t.Run("NoCharset", func(t *testing.T) {
		cfg := NewConfig().NoTextCharset().Done()
		out := probe(t, cfg, "GET", base)
		defer out.Body.Close()
		if h := headerMap(out.Head); h["Content-Type"] != "text/plain" {
			t.Errorf("incorrect content type: %q", h["Content-Type"])
		}
	})
	t.Run("CustomCharset", func(t *testing.T) {
		cfg := NewConfig().TextCharset("latin-1").Done()
		out := probe(t, cfg, "GET", base)
		defer out.Body.Close()
		if h := headerMap(out.Head); h["Content-Type"] != "text/plain; charset=latin-1" {
			t.Errorf("incorrect content type: %q", h["Content-Type"])
		}
	})
	t.Run("NoContentType", func(t *testing.T) {
		cfg := NewConfig().ContentType(false).Done()
		out := probe(t, cfg, "GET", base)
		defer out.Body.Close()
		if h := headerMap(out.Head); h["Content-Type"] != "" {
			t.Errorf("unexpected content type: %q", h["Content-Type"])
		}
	})
	t.Run("UnknownExtension", func(t *testing.T) {
		writeFile(t, filepath.Join(dir, "blob.xyzzy"), []byte("?"))
		cfg := NewConfig().Done()
		out := probe(t, cfg, "GET", filepath.Join(dir, "blob.xyzzy"))
		defer out.Body.Close()
		if h := headerMap(out.Head); h["Content-Type"] != "application/octet-stream" {
			t.Errorf("incorrect content type: %q", h["Content-Type"])
		}
	})
}
