package fileheaders

import (
	"mime"
	"strings"
)

// builtinTypes covers common web assets. It is consulted before the
// platform mime database so results are stable across hosts.
var builtinTypes = map[string]string{
	".html":  "text/html",
	".htm":   "text/html",
	".css":   "text/css",
	".js":    "application/javascript",
	".mjs":   "application/javascript",
	".json":  "application/json",
	".txt":   "text/plain",
	".md":    "text/markdown",
	".xml":   "text/xml",
	".csv":   "text/csv",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".avif":  "image/avif",
	".ico":   "image/x-icon",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".otf":   "font/otf",
	".ttf":   "font/ttf",
	".wasm":  "application/wasm",
	".pdf":   "application/pdf",
	".zip":   "application/zip",
	".mp4":   "video/mp4",
	".webm":  "video/webm",
	".mp3":   "audio/mpeg",
	".ogg":   "audio/ogg",
}

// defaultMimeLookup resolves an extension via the builtin table, then
// the platform mime database with any parameters stripped.
func defaultMimeLookup(ext string) (string, bool) {
	if t, ok := builtinTypes[strings.ToLower(ext)]; ok {
		return t, true
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt, true
		}
	}
	return "", false
}

func isTextType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/") ||
		mimeType == "application/javascript"
}
