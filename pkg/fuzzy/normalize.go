// Package fuzzy normalizes free-text track/artist queries before they are sent to the Gateway's
// search endpoints, folding accents, stripping parenthetical noise ("(feat. ...)", "(Remix)",
// "(Remastered)"), and collapsing punctuation the way a human typing a query would ignore it.
package fuzzy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	featRegex       = regexp.MustCompile(`(?i)\s*[\(\[]?\s*(?:feat\.?|ft\.?|featuring)\s+[^\)\]]*[\)\]]?\s*`)
	remixRegex      = regexp.MustCompile(`(?i)\s*[\(\[]?\s*remix.*[\)\]]?\s*`)
	versionRegex    = regexp.MustCompile(`(?i)\s*[\(\[]?\s*(remaster|remastered|deluxe|extended|radio edit|clean|explicit).*[\)\]]?\s*`)
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// Normalizer holds no state; it exists so the Gateway can depend on an interface-shaped value
// rather than bare package functions.
type Normalizer struct{}

// NewNormalizer builds a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// NormalizeArtist lowercases and accent-folds an artist query, then canonicalizes the handful of
// separators ("and"/"vs"/"feat"/"ft") Spotify's search tolerates in either spelling.
func (n *Normalizer) NormalizeArtist(artist string) string {
	artist = n.basicNormalize(artist)

	artist = strings.ReplaceAll(artist, " and ", " & ")
	artist = strings.ReplaceAll(artist, " vs ", " vs. ")
	artist = strings.ReplaceAll(artist, " feat ", " feat. ")
	artist = strings.ReplaceAll(artist, " ft ", " ft. ")

	return artist
}

// NormalizeTitle lowercases and accent-folds a track title query, additionally stripping the
// featured-artist, remix, and re-release annotations that otherwise narrow a search to nothing.
func (n *Normalizer) NormalizeTitle(title string) string {
	title = n.basicNormalize(title)

	title = featRegex.ReplaceAllString(title, "")
	title = remixRegex.ReplaceAllString(title, "")
	title = versionRegex.ReplaceAllString(title, "")

	return strings.TrimSpace(title)
}

// basicNormalize applies the shared NFKD-fold-and-strip-marks, punctuation-to-space, and
// whitespace-collapse steps both NormalizeArtist and NormalizeTitle build on.
func (n *Normalizer) basicNormalize(text string) string {
	text = norm.NFKD.String(text)

	var stripped strings.Builder
	for _, r := range text {
		if !unicode.IsMark(r) {
			stripped.WriteRune(r)
		}
	}
	text = stripped.String()

	text = punctRegex.ReplaceAllString(text, " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")
	text = strings.ToLower(text)

	return strings.TrimSpace(text)
}
