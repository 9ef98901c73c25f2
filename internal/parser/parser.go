// Package parser implements the Parser component (§4.1): it turns an input program into a
// Playlist with its entries and directives populated, doing no I/O of its own.
package parser

import (
	"regexp"
	"strings"
	"unicode"

	"playlistgen/internal/entry"
	"playlistgen/internal/playlist"
)

// lastfmDirective matches "#ORDER BY LASTFM", "#SORT BY LAST.FM", and case variants thereof — the
// one directive that isn't a clean literal prefix, per §4.1's table.
var lastfmDirective = regexp.MustCompile(`(?i)^#(?:ORDER|SORT)\s+BY\s+LAST\.?FM\s*$`)

// directive is one row of the explicit table §9 asks for in place of loose regex prefix matching:
// a case-insensitive literal prefix and the effect it has on the Playlist being built.
type directive struct {
	prefix string
	apply  func(p *playlist.Playlist, rest string)
}

var directiveTable = []directive{
	{"##", func(*playlist.Playlist, string) {}},
	{"#ORDER BY POPULARITY", func(p *playlist.Playlist, _ string) { p.Ordering = playlist.OrderPopularity }},
	{"#GROUP BY ENTRY", func(p *playlist.Playlist, _ string) { p.Grouping = playlist.GroupEntry }},
	{"#GROUP BY ARTIST", func(p *playlist.Playlist, _ string) { p.Grouping = playlist.GroupArtist }},
	{"#GROUP BY ALBUM", func(p *playlist.Playlist, _ string) { p.Grouping = playlist.GroupAlbum }},
	{"#UNIQUE", func(p *playlist.Playlist, _ string) { p.Unique = true }},
	{"#ALBUM", func(p *playlist.Playlist, rest string) {
		p.Entries.Add(entry.NewAlbum(strings.TrimSpace(rest)))
	}},
	{"#ARTIST", func(p *playlist.Playlist, rest string) {
		p.Entries.Add(entry.NewArtist(strings.TrimSpace(rest)))
	}},
}

// Parse reads a text program into a *playlist.Playlist, splitting on any of CR, LF, or CRLF and
// classifying each non-empty trimmed line per §4.1's directive table. Unrecognized "#" lines are
// silently ignored as comments (ParseWarning, §7); every other non-empty line becomes a free-text
// Track entry.
func Parse(program string) *playlist.Playlist {
	p := playlist.New()
	for _, line := range splitLines(program) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		classify(p, line)
	}
	return p
}

func splitLines(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == '\r' || r == '\n' })
}

func classify(p *playlist.Playlist, line string) {
	upper := strings.ToUpper(line)

	if lastfmDirective.MatchString(upper) {
		p.Ordering = playlist.OrderLastFM
		return
	}

	for _, d := range directiveTable {
		if rest, ok := cutPrefixFold(line, upper, d.prefix); ok {
			d.apply(p, rest)
			return
		}
	}

	if strings.HasPrefix(upper, "#") {
		return // unknown directive: silently ignored, per §4.1
	}

	p.Entries.Add(entry.NewTrack(line))
}

// cutPrefixFold reports whether upper (the upper-cased line) starts with prefix, returning the
// original-case remainder of line. Beyond "##" (whose trailing text is free-form comment text),
// the character right after prefix must be whitespace or end-of-line, so "#ALBUMS of the year"
// isn't misclassified as an Album entry with text "S of the year".
func cutPrefixFold(line, upper, prefix string) (string, bool) {
	if !strings.HasPrefix(upper, prefix) {
		return "", false
	}
	rest := line[len(prefix):]
	if prefix != "##" && rest != "" && !unicode.IsSpace(rune(rest[0])) {
		return "", false
	}
	return rest, true
}
