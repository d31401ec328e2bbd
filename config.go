package fileheaders

import "slices"

// encodingSupport controls when the probe searches for pre-compressed
// sibling files.
type encodingSupport uint8

const (
	encodingsNever encodingSupport = iota
	encodingsTextFiles
	encodingsAllFiles
)

// MimeLookup resolves a filename extension (with leading dot) to a mime
// type without parameters. Returning false means unknown.
type MimeLookup func(ext string) (string, bool)

// Config holds the engine options. Build one at startup with the
// chained setters, freeze it with [Config.Done], and share the result
// across requests.
type Config struct {
	textCharset     string
	indexFiles      []string
	encodingSupport encodingSupport
	contentType     bool
	etag            bool
	lastModified    bool
	mimeLookup      MimeLookup
}

// NewConfig returns a configuration with the default values: text
// charset utf-8, no index files, sibling encodings probed for text
// files, and Content-Type, ETag, and Last-Modified all enabled.
func NewConfig() *Config {
	return &Config{
		textCharset:     "utf-8",
		encodingSupport: encodingsTextFiles,
		contentType:     true,
		etag:            true,
		lastModified:    true,
		mimeLookup:      defaultMimeLookup,
	}
}

// TextCharset sets the charset appended to text mime types.
func (c *Config) TextCharset(charset string) *Config {
	c.textCharset = charset
	return c
}

// NoTextCharset disables appending a charset to text mime types.
func (c *Config) NoTextCharset() *Config {
	c.textCharset = ""
	return c
}

// AddIndexFile adds a filename probed when a request resolves to a
// directory, like "index.html". Multiple names can be added; they are
// probed in the order they were added.
func (c *Config) AddIndexFile(name string) *Config {
	c.indexFiles = append(c.indexFiles, name)
	return c
}

// NoEncodings disables the search for .br and .gz sibling files.
func (c *Config) NoEncodings() *Config {
	c.encodingSupport = encodingsNever
	return c
}

// EncodingsOnTextFiles searches for .br and .gz siblings of text files,
// those with a text/* mime type or application/javascript. This is the
// default.
func (c *Config) EncodingsOnTextFiles() *Config {
	c.encodingSupport = encodingsTextFiles
	return c
}

// EncodingsOnAllFiles searches for .br and .gz siblings regardless of
// mime type.
func (c *Config) EncodingsOnAllFiles() *Config {
	c.encodingSupport = encodingsAllFiles
	return c
}

// ContentType controls whether Content-Type is emitted at all.
func (c *Config) ContentType(enable bool) *Config {
	c.contentType = enable
	return c
}

// Etag controls whether an ETag is computed and emitted; disabling it
// also disables If-None-Match handling.
func (c *Config) Etag(enable bool) *Config {
	c.etag = enable
	return c
}

// LastModified controls whether Last-Modified is emitted; disabling it
// also disables If-Modified-Since handling.
func (c *Config) LastModified(enable bool) *Config {
	c.lastModified = enable
	return c
}

// MimeTypes replaces the extension-to-mime lookup.
func (c *Config) MimeTypes(lookup MimeLookup) *Config {
	c.mimeLookup = lookup
	return c
}

// Done freezes the configuration. The returned value is shared by
// reference across requests and must not be mutated afterwards.
func (c *Config) Done() *Config {
	out := *c
	out.indexFiles = slices.Clone(c.indexFiles)
	return &out
}
