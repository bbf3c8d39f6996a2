package mediapath

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// albumSeparators are tried in order after an artist-name prefix.
var albumSeparators = []string{" - ", "  ", ": ", " : ", "_ ", " _ ", " | ", " / "}

// MinRetainRatio is the shortest cleaned album allowed, relative to the raw album.
const MinRetainRatio = 0.3

const trimCutset = " \t-_:|/"

// CleanAlbum strips a leading artist name from album. The raw album is
// returned whenever stripping would leave fewer than 2 characters or less
// than MinRetainRatio of the original.
func CleanAlbum(artist, album string) string {
	if artist == "" || len(album) < len(artist) {
		return album
	}
	if !strings.EqualFold(album[:len(artist)], artist) {
		return album
	}

	rest := album[len(artist):]
	cleaned, ok := stripSeparator(rest)
	if !ok {
		return album
	}

	cleaned = strings.Trim(cleaned, trimCutset)
	n := utf8.RuneCountInString(cleaned)
	if n < 2 || float64(n) < MinRetainRatio*float64(utf8.RuneCountInString(album)) {
		return album
	}
	return cleaned
}

func stripSeparator(rest string) (string, bool) {
	for _, sep := range albumSeparators {
		if strings.HasPrefix(rest, sep) {
			return rest[len(sep):], true
		}
	}

	// A bare space is only accepted before a non-lower-case word, so an album
	// like "Blur the lines" by Blur keeps its full title.
	if !strings.HasPrefix(rest, " ") {
		return "", false
	}
	remainder := rest[1:]
	r, _ := utf8.DecodeRuneInString(remainder)
	if r == utf8.RuneError || unicode.IsLower(r) {
		return "", false
	}
	return remainder, true
}
