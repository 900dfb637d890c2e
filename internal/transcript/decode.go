package transcript

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// Decode converts an uploaded transcript file to a Go string.
//
// UTF-8 input (with or without BOM) and UTF-16 input carrying a BOM are
// decoded as such. Anything else that is not valid UTF-8 is assumed to be
// Windows-1252, the default code page of most CAT exports. The result is
// NFC-normalised so that composed and decomposed accents compare equal.
func Decode(data []byte) (string, error) {
	var dec transform.Transformer
	switch {
	case bytes.HasPrefix(data, bomUTF16BE), bytes.HasPrefix(data, bomUTF16LE), utf8.Valid(data):
		dec = unicode.BOMOverride(unicode.UTF8.NewDecoder())
	default:
		dec = charmap.Windows1252.NewDecoder()
	}

	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", fmt.Errorf("transcript: decode: %w", err)
	}
	return norm.NFC.String(string(out)), nil
}
