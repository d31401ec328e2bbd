package fileheaders

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// ProbeFile resolves base against the filesystem and runs the decision
// engine. It performs blocking filesystem work and must run where
// blocking is acceptable; everything else in the pipeline is
// synchronous and allocation-light.
//
// A missing file is an outcome, not an error. Any filesystem error
// other than "not exist" is returned to the caller, which decides
// whether that maps to a 500.
func (in *Input) ProbeFile(base string) (Outcome, error) {
	switch in.mode {
	case ModeInvalidMethod:
		return Outcome{Kind: InvalidMethod}, nil
	case ModeInvalidRange:
		return Outcome{Kind: InvalidRange}, nil
	}

	path := base
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Outcome{Kind: NotFound}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	if fi.IsDir() {
		found := false
		for _, name := range in.cfg.indexFiles {
			cand := filepath.Join(path, name)
			_, err := os.Stat(cand)
			if err == nil {
				path = cand
				found = true
				break
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return Outcome{}, err
			}
		}
		if !found {
			return Outcome{Kind: Directory}, nil
		}
	}

	mimeType, known := in.cfg.mimeLookup(filepath.Ext(path))
	if !known {
		mimeType = "application/octet-stream"
	}

	tryEncodings := false
	switch in.cfg.encodingSupport {
	case encodingsAllFiles:
		tryEncodings = true
	case encodingsTextFiles:
		tryEncodings = isTextType(mimeType)
	}

	var (
		file     *os.File
		encoding Encoding
	)
	for enc := range in.Encodings() {
		if enc != Identity && !tryEncodings {
			continue
		}
		f, err := os.Open(path + enc.Suffix())
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Outcome{}, err
		}
		file, encoding = f, enc
		break
	}
	if file == nil {
		// Every candidate vanished between the stat and the open.
		return Outcome{Kind: NotFound}, nil
	}

	fi, err = file.Stat()
	if err != nil {
		file.Close()
		return Outcome{}, err
	}
	if fi.IsDir() {
		// The suffixed sibling is a directory; never serve that.
		file.Close()
		return Outcome{Kind: NotFound}, nil
	}
	return in.respond(file, fi, encoding, mimeType)
}
