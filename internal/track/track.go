// Package track models a resolved or partially-resolved playlist track and the two-stage
// simple/full response lifecycle described by the resolution pipeline.
package track

import (
	"strconv"
	"strings"
)

// UnknownInt is the sentinel used for popularity/playcount values that have not been observed.
const UnknownInt = -1

// responseKind distinguishes a Track obtained as a side effect of search/album listing (Simple)
// from one fetched directly by ID (Full). Only a Full track carries popularity; a Simple track
// carries an album name only when its response included one.
type responseKind int

const (
	responseUnresolved responseKind = iota
	responseSimple
	responseFull
)

// Track is a single resolved (or unresolved) playlist entry. EntryText is the original query
// text and is kept even after resolution so "group by entry" and equality-fallback can use it.
type Track struct {
	EntryText     string
	ID            string
	URI           string
	Title         string
	PrimaryArtist string
	AllArtists    []string
	AlbumName     string
	Popularity    int
	Playcount     int

	kind responseKind
}

// Unresolved creates a Track that has not yet been looked up remotely; its URI is empty and it
// carries only the original query text until ApplySimple/ApplyFull populates it.
func Unresolved(entryText string) *Track {
	return &Track{
		EntryText:  entryText,
		Popularity: UnknownInt,
		Playcount:  UnknownInt,
	}
}

// ApplySimple fills in a Track from a search-hit or album-listing response, which lacks
// popularity. It never regresses a Full track back to Simple.
func (t *Track) ApplySimple(id, uri, title, primaryArtist string, allArtists []string, albumName string) {
	if t.kind == responseFull {
		return
	}
	t.ID = id
	t.URI = uri
	t.Title = title
	t.PrimaryArtist = primaryArtist
	t.AllArtists = allArtists
	if albumName != "" {
		t.AlbumName = albumName
	}
	t.kind = responseSimple
}

// ApplyFull fills in a Track from a direct by-ID fetch, which includes popularity and album name.
func (t *Track) ApplyFull(id, uri, title, primaryArtist string, allArtists []string, albumName string, popularity int) {
	t.ID = id
	t.URI = uri
	t.Title = title
	t.PrimaryArtist = primaryArtist
	t.AllArtists = allArtists
	t.AlbumName = albumName
	t.Popularity = popularity
	t.kind = responseFull
}

// IsFull reports whether this Track carries a full response (and therefore a meaningful
// Popularity).
func (t *Track) IsFull() bool {
	return t.kind == responseFull
}

// IsResolved reports whether any remote response has populated this Track's URI.
func (t *Track) IsResolved() bool {
	return t.URI != ""
}

// String is the canonical representation used for equality: the URI when resolved, the original
// query text otherwise. Two unresolved tracks with identical entry text are therefore equal even
// though they might resolve to different tracks — preserved intentionally (see SPEC_FULL.md open
// question 4).
func (t *Track) String() string {
	if t.URI != "" {
		return t.URI
	}
	return t.EntryText
}

// Equal implements the Track equality rule from §4.4/§8: case-folded String() comparison.
func Equal(a, b *Track) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.String(), b.String())
}

// Key returns the case-folded canonical string two Tracks are compared by. It is exported so a
// dedup fast-path (bloom filter plus exact map) can key on it directly instead of re-deriving
// String() and folding it at every comparison.
func Key(t *Track) string {
	return strings.ToLower(t.String())
}

// scheme is the identifier scheme embedded in canonical URIs of the form "<scheme>:track:<id>".
const scheme = "spotify"

// URIFor builds the canonical "<scheme>:track:<id>" identifier for an ID.
func URIFor(id string) string {
	if id == "" {
		return ""
	}
	return scheme + ":track:" + id
}

// IDFromURI extracts the opaque ID from a canonical URI or a https?://<host>/track/<id> web
// link, per §3's derivation rule. Returns ("", false) if neither form matches.
func IDFromURI(s string) (string, bool) {
	if id, ok := strings.CutPrefix(s, scheme+":track:"); ok && id != "" {
		return id, true
	}
	const marker = "/track/"
	if idx := strings.Index(s, marker); idx != -1 {
		rest := s[idx+len(marker):]
		if end := strings.IndexAny(rest, "?#"); end != -1 {
			rest = rest[:end]
		}
		rest = strings.Trim(rest, "/")
		if rest != "" {
			return rest, true
		}
	}
	return "", false
}

// ParsePlaycount converts Last.fm's string-typed playcount field, defaulting to UnknownInt on
// any parse failure.
func ParsePlaycount(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return UnknownInt
	}
	return n
}
