// Command precompress writes .gz and .br siblings next to static files
// so a server can answer Accept-Encoding negotiation without
// compressing on the fly. Variants that would not be smaller than the
// source are skipped, and stale variants are rewritten when the source
// changes.
package main

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"
	"github.com/swindon-rs/http-file-headers/internal/pflagx"
)

var (
	EnvPrefix = "PRECOMPRESS_"
	Root      = pflag.StringP("root", "r", ".", "directory to process")
	TextOnly  = pflag.BoolP("text-only", "t", true, "only compress text-like files (html, css, js, json, svg, txt, xml, md, csv)")
	Force     = pflag.BoolP("force", "f", false, "rewrite variants even when they are newer than the source")
	DryRun    = pflag.BoolP("dry-run", "n", false, "log what would be written without writing")
	LogLevel  = pflagx.LevelP("log-level", "L", slog.LevelInfo, "log level")
	Help      = pflag.BoolP("help", "h", false, "show this help text")
)

var textExts = map[string]bool{
	".html": true, ".htm": true, ".css": true, ".js": true, ".mjs": true,
	".json": true, ".svg": true, ".txt": true, ".xml": true, ".md": true,
	".csv": true,
}

func main() {
	pflagx.ParseEnv(EnvPrefix)
	pflag.Parse()

	if *Help || pflag.NArg() != 0 {
		fmt.Printf("usage: %s [options]\n%s", os.Args[0], pflag.CommandLine.FlagUsages())
		if *Help {
			return
		}
		os.Exit(2)
	}

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: LogLevel,
	})))

	if err := run(); err != nil {
		slog.Error("failed to precompress", "error", err)
		os.Exit(1)
	}
}

func run() error {
	return filepath.WalkDir(*Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".gz" || ext == ".br" {
			return nil
		}
		if *TextOnly && !textExts[ext] {
			return nil
		}
		return process(path)
	})
}

func process(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	for _, enc := range []struct {
		suffix   string
		compress func(io.Writer) io.WriteCloser
	}{
		{".gz", func(w io.Writer) io.WriteCloser {
			zw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
			if err != nil {
				panic(err)
			}
			return zw
		}},
		{".br", func(w io.Writer) io.WriteCloser {
			return brotli.NewWriterLevel(w, brotli.BestCompression)
		}},
	} {
		variant := path + enc.suffix
		if !*Force {
			if vi, err := os.Stat(variant); err == nil && !vi.ModTime().Before(fi.ModTime()) {
				continue
			}
		}
		size, err := writeVariant(path, variant, enc.compress)
		if err != nil {
			return fmt.Errorf("compress %q: %w", variant, err)
		}
		if size < 0 {
			continue
		}
		slog.Info("wrote variant", "path", variant,
			"size", size, "orig_size", fi.Size())
	}
	return nil
}

// writeVariant compresses src into a temporary file and renames it over
// dst. It reports -1 when the compressed form is not smaller than the
// source, removing any stale variant in that case.
func writeVariant(src, dst string, compress func(io.Writer) io.WriteCloser) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".tmp*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	cw := compress(tmp)
	if _, err := io.Copy(cw, in); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := cw.Close(); err != nil {
		tmp.Close()
		return 0, err
	}
	size, err := tmp.Seek(0, io.SeekEnd)
	if err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}

	orig, err := os.Stat(src)
	if err != nil {
		return 0, err
	}
	if size >= orig.Size() {
		// not worth serving; drop any stale variant too
		if !*DryRun {
			if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
				return 0, err
			}
		}
		slog.Debug("variant not smaller, skipped", "path", dst,
			"size", size, "orig_size", orig.Size())
		return -1, nil
	}
	if *DryRun {
		slog.Info("would write variant", "path", dst, "size", size)
		return -1, nil
	}
	return size, os.Rename(tmp.Name(), dst)
}
