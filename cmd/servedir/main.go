// Command servedir serves a directory of static files with negotiated
// pre-compressed siblings, conditional requests, and byte ranges.
package main

import (
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"
	fileheaders "github.com/swindon-rs/http-file-headers"
	"github.com/swindon-rs/http-file-headers/internal/pflagx"
)

var (
	EnvPrefix = "SERVEDIR_"
	Addr      = pflag.StringP("addr", "a", ":8000", "listen address")
	Root      = pflag.StringP("root", "r", ".", "directory to serve")
	Index     = pflag.StringSliceP("index", "i", nil, "directory index file names, probed in order")
	Encodings = pflag.StringP("encodings", "e", "text", "which files get .br/.gz sibling probing (never, text, all)")
	Charset   = pflag.StringP("charset", "c", "utf-8", "charset appended to text content types (empty to disable)")
	LogLevel  = pflagx.LevelP("log-level", "L", slog.LevelInfo, "log level")
	LogJSON   = pflag.Bool("log-json", false, "use json logs")
	Help      = pflag.BoolP("help", "h", false, "show this help text")
)

func main() {
	if val, ok := os.LookupEnv("PORT"); ok {
		if err := pflag.Set("addr", ":"+val); err != nil {
			panic(err)
		}
	}
	pflagx.ParseEnv(EnvPrefix)
	pflag.Parse()

	if *Help || pflag.NArg() != 0 {
		fmt.Printf("usage: %s [options]\n%s", os.Args[0], pflag.CommandLine.FlagUsages())
		if *Help {
			return
		}
		os.Exit(2)
	}

	if *LogJSON {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: LogLevel,
		})))
	} else {
		slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level: LogLevel,
		})))
	}
	slog.SetLogLoggerLevel(LogLevel.Level())

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := fileheaders.NewConfig()
	for _, name := range *Index {
		cfg.AddIndexFile(name)
	}
	switch *Encodings {
	case "never":
		cfg.NoEncodings()
	case "text":
		cfg.EncodingsOnTextFiles()
	case "all":
		cfg.EncodingsOnAllFiles()
	default:
		return fmt.Errorf("unknown encodings mode %q", *Encodings)
	}
	if *Charset == "" {
		cfg.NoTextCharset()
	} else {
		cfg.TextCharset(*Charset)
	}

	root, err := filepath.Abs(*Root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}

	slog.Info("http: listening", "addr", *Addr, "root", root)
	return http.ListenAndServe(*Addr, &server{cfg: cfg.Done(), root: root})
}

type server struct {
	cfg  *fileheaders.Config
	root string
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	in := fileheaders.FromHeaders(s.cfg, r.Method, rawHeaders(r.Header))
	base := filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
	out, err := in.ProbeFile(base)
	if err != nil {
		slog.Error("http: probe failed", "path", r.URL.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Add("Vary", "Accept-Encoding")
	if out.Head != nil {
		for name, value := range out.Head.Headers() {
			w.Header().Add(name, value)
		}
		if out.Kind != fileheaders.NotModified {
			w.Header().Set("Content-Length", strconv.FormatUint(out.Head.ContentLength(), 10))
		}
	}

	status := out.Status()
	switch out.Kind {
	case fileheaders.NotFound, fileheaders.Directory:
		http.Error(w, "not found", status)
	case fileheaders.InvalidMethod:
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", status)
	case fileheaders.InvalidRange:
		http.Error(w, "range not satisfiable", status)
	default:
		w.WriteHeader(status)
		if out.Body != nil {
			defer out.Body.Close()
			if err := copyBody(w, out.Body); err != nil {
				// most likely the client went away mid-stream
				slog.Debug("http: body stream aborted", "path", r.URL.Path, "error", err)
				return
			}
		}
	}

	slog.Debug("http: served", "method", r.Method, "path", r.URL.Path,
		"status", status, "dur", time.Since(start))
}

// copyBody drains the reader into w chunk by chunk. net/http handles
// flow control on the socket side, so a chunk is never short-written
// here without an error.
func copyBody(w io.Writer, body *fileheaders.BodyReader) error {
	for {
		n, err := body.ReadChunk(w)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// rawHeaders adapts net/http's canonical header map to the raw pairs
// the parser consumes.
func rawHeaders(h http.Header) iter.Seq2[string, []byte] {
	return func(yield func(string, []byte) bool) {
		for name, values := range h {
			for _, v := range values {
				if !yield(name, []byte(v)) {
					return
				}
			}
		}
	}
}
