package transport

import (
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// decodeBody converts a response body to UTF-8 text using the charset the
// server declared. A body that cannot be decoded yields "".
func decodeBody(raw []byte, contentType string) string {
	if len(raw) == 0 {
		return ""
	}

	label := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		label = strings.ToLower(strings.TrimSpace(params["charset"]))
	}

	if label == "" || label == "utf-8" || label == "utf8" {
		raw = trimPartialRune(raw)
		if !utf8.Valid(raw) {
			return ""
		}
		return string(raw)
	}

	enc, _ := charset.Lookup(label)
	if enc == nil {
		return ""
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return ""
	}
	return string(out)
}

// trimPartialRune drops an incomplete UTF-8 sequence at the end of raw, as
// left behind when the read limit cuts a character in half.
func trimPartialRune(raw []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(raw); i++ {
		start := len(raw) - i
		if !utf8.RuneStart(raw[start]) {
			continue
		}
		if !utf8.FullRune(raw[start:]) {
			return raw[:start]
		}
		return raw
	}
	return raw
}
