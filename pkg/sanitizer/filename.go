package sanitizer

import (
	"path/filepath"
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reUnsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	reMultiUnderscore     = regexp.MustCompile(`_+`)
)

// SecureFilename reduces a client-supplied name to a safe base name made of
// ASCII letters, digits, dots, dashes and underscores. Directory parts are
// dropped. The result may be "" when nothing usable remains.
func SecureFilename(name string) string {
	p := Pipeline{
		strings.TrimSpace,
		func(s string) string { return strings.ReplaceAll(s, "\\", "/") },
		filepath.Base,
		func(s string) string { return reUnsafeFilenameChars.ReplaceAllString(s, "_") },
		func(s string) string { return reMultiUnderscore.ReplaceAllString(s, "_") },
		func(s string) string { return strings.Trim(s, "._") },
	}
	out := p.Apply(name)
	if out == "." || out == "/" {
		return ""
	}
	return out
}
