package graph

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

var (
	whitespace = regexp.MustCompile(`[\s\v\p{Z}\x{85}]+`)
	controls   = regexp.MustCompile(`[\x{00}-\x{1f}\x{7f}-\x{9f}]`)
)

// Normalize decodes raw bytes as UTF-8 and returns clean single-spaced text.
// Whitespace runs, including newlines and tabs, become one space before the
// remaining control characters are removed, so words on separate lines stay
// separate.
func Normalize(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: file must be UTF-8 encoded text", common.ErrEncoding)
	}
	return NormalizeText(string(raw)), nil
}

// NormalizeText applies the normalization of Normalize to an already decoded string.
func NormalizeText(text string) string {
	text = whitespace.ReplaceAllString(text, " ")
	text = controls.ReplaceAllString(text, "")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
