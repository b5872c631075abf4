// Package textfile reads context files as text, tolerating bad encodings.
package textfile

import (
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Read returns the file at path decoded as UTF-8. A UTF-8 or UTF-16 byte
// order mark selects the encoding and is stripped; invalid sequences become
// U+FFFD instead of failing the read.
func Read(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Decode(f)
}

// Decode applies the lenient decoding used by Read to r.
func Decode(r io.Reader) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	data, err := io.ReadAll(transform.NewReader(r, dec))
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

// IsRegular reports whether path exists and is a regular file (symlinks
// are followed).
func IsRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
