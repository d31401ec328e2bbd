// Package pflagx implements extensions to pflag.
package pflagx

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode"

	"github.com/spf13/pflag"
)

// LevelP defines a slog level flag on the command line, returning a
// LevelVar usable directly in handler options.
func LevelP(name, shorthand string, value slog.Level, usage string) *slog.LevelVar {
	level := new(slog.LevelVar)
	def := new(slog.LevelVar)
	def.Set(value)
	pflag.TextVarP(level, name, shorthand, def, usage)
	return level
}

// ParseEnv sets command-line flags from environment variables with the
// given prefix, mapping PREFIX_SOME_FLAG to --some-flag. Unknown
// variables under the prefix are reported and skipped; invalid values
// exit with status 2 like a bad flag would.
func ParseEnv(prefix string) {
	for _, env := range os.Environ() {
		k, v, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		s, ok := strings.CutPrefix(k, prefix)
		if !ok {
			continue
		}
		n := strings.Map(func(r rune) rune {
			if r == '_' {
				return '-'
			}
			return unicode.ToLower(r)
		}, s)
		f := pflag.CommandLine.Lookup(n)
		if f == nil {
			fmt.Fprintf(pflag.CommandLine.Output(), "env %s: unknown flag --%s\n", k, n)
			continue
		}
		if err := f.Value.Set(v); err != nil {
			fmt.Fprintf(pflag.CommandLine.Output(), "env %s: flag --%s: invalid argument: %v\n", k, n, err)
			os.Exit(2)
		}
	}
}
