// Package entry implements the three Entry variants (Track, Album, Artist) and their uniform
// expansion contract, §4.3's polymorphic expand() operation modeled as a tagged variant.
package entry

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"playlistgen/internal/queue"
	"playlistgen/internal/resolve"
	"playlistgen/internal/track"
)

// Gateway is the subset of *resolve.Gateway's surface an Entry needs to expand itself.
type Gateway interface {
	SearchTrack(ctx context.Context, query string) (*resolve.TrackHit, error)
	GetTrack(ctx context.Context, id string) (*resolve.TrackHit, error)
	SearchAlbum(ctx context.Context, query string) (string, error)
	GetAlbumTracks(ctx context.Context, albumID string) ([]resolve.TrackHit, error)
	SearchArtist(ctx context.Context, query string) (string, error)
	GetArtistAlbums(ctx context.Context, artistID string) ([]string, error)
}

// Entry is the tagged variant every parsed input line becomes: Track, Album, or Artist, each
// implementing the uniform expansion contract.
type Entry interface {
	// Expand resolves this Entry into a Node (a leaf Track or a nested Queue of further Nodes),
	// issuing whatever Gateway calls are needed. A returned error represents a hard Gateway
	// failure (not a recoverable "zero hits") and is swallowed by queue.ResolveAll — the caller
	// should log a diagnostic before returning one.
	Expand(ctx context.Context, gw Gateway, logger *zap.Logger) (queue.Node, error)
	// EntryText is the original, trimmed input line this Entry was parsed from.
	EntryText() string
}

func emptyNode() queue.Node {
	return queue.Branch(queue.New[queue.Node]())
}

func logNotFound(logger *zap.Logger, query string) {
	logger.Warn("COULD NOT FIND", zap.String("query", query))
}

func wrapGatewayErr(logger *zap.Logger, err error, op, query string) error {
	logger.Warn("gateway request failed during expansion", zap.String("op", op), zap.String("query", query), zap.Error(err))
	return fmt.Errorf("%s(%q): %w", op, query, err)
}

func applySimpleHit(t *track.Track, hit *resolve.TrackHit) {
	t.ApplySimple(hit.ID, hit.URI, hit.Title, hit.PrimaryArtist, hit.AllArtists, hit.AlbumName)
}

func applyFullHit(t *track.Track, hit *resolve.TrackHit) {
	t.ApplyFull(hit.ID, hit.URI, hit.Title, hit.PrimaryArtist, hit.AllArtists, hit.AlbumName, hit.Popularity)
}

// Track is the Track entry variant. Its Expand implements §4.3's three-branch rule: already-full
// tracks are a no-op, URI-shaped or link-shaped text resolves by id, everything else is a
// free-text search.
type Track struct {
	entryText string
	t         *track.Track
}

// NewTrack creates a Track entry from a parsed input line.
func NewTrack(entryText string) *Track {
	return &Track{entryText: entryText, t: track.Unresolved(entryText)}
}

// EntryText returns the original input line.
func (e *Track) EntryText() string { return e.entryText }

// Expand implements the Track.expand contract described in §4.3.
func (e *Track) Expand(ctx context.Context, gw Gateway, logger *zap.Logger) (queue.Node, error) {
	if e.t.IsFull() {
		return queue.Leaf(e.t), nil
	}

	if id, ok := track.IDFromURI(e.entryText); ok {
		hit, err := gw.GetTrack(ctx, id)
		if err != nil {
			if errors.Is(err, resolve.ErrNotFound) {
				logNotFound(logger, e.entryText)
				return emptyNode(), nil
			}
			return queue.Node{}, wrapGatewayErr(logger, err, "get_track", e.entryText)
		}
		applyFullHit(e.t, hit)
		return queue.Leaf(e.t), nil
	}

	hit, err := gw.SearchTrack(ctx, e.entryText)
	if err != nil {
		if errors.Is(err, resolve.ErrNotFound) {
			logNotFound(logger, e.entryText)
			return queue.Leaf(e.t), nil
		}
		logger.Warn("track search failed, leaving entry unresolved",
			zap.String("query", e.entryText), zap.Error(err))
		return queue.Leaf(e.t), nil
	}
	applySimpleHit(e.t, hit)
	return queue.Leaf(e.t), nil
}

// Album is the Album entry variant. Its Expand implements §4.3's Album.expand, with the REDESIGN
// from §9 applied: whether the album id came from a fresh search or was already known (as when
// an Artist expansion builds one Album entry per listed album), the rest of the expansion — fetch
// the full album, build a Track per listed item — is identical.
type Album struct {
	entryText string
	presetID  string
}

// NewAlbum creates an Album entry from a parsed input line (the #ALBUM directive); its id will be
// resolved via search when Expand runs.
func NewAlbum(entryText string) *Album {
	return &Album{entryText: entryText}
}

// newAlbumFromID creates an Album entry whose id is already known, skipping the search step —
// used by Artist.Expand for the albums listed under an artist.
func newAlbumFromID(entryText, albumID string) *Album {
	return &Album{entryText: entryText, presetID: albumID}
}

// EntryText returns the original input line (or, for artist-derived albums, the artist's text —
// so "group by entry" groups every track from every album of that artist together).
func (e *Album) EntryText() string { return e.entryText }

// Expand implements Album.expand.
func (e *Album) Expand(ctx context.Context, gw Gateway, logger *zap.Logger) (queue.Node, error) {
	albumID := e.presetID
	if albumID == "" {
		id, err := gw.SearchAlbum(ctx, e.entryText)
		if err != nil {
			if errors.Is(err, resolve.ErrNotFound) {
				logNotFound(logger, e.entryText)
				return emptyNode(), nil
			}
			return queue.Node{}, wrapGatewayErr(logger, err, "search_album", e.entryText)
		}
		albumID = id
	}

	hits, err := gw.GetAlbumTracks(ctx, albumID)
	if err != nil {
		return queue.Node{}, wrapGatewayErr(logger, err, "get_album", e.entryText)
	}

	tracks := queue.New[queue.Node]()
	for i := range hits {
		t := track.Unresolved(e.entryText)
		applySimpleHit(t, &hits[i])
		tracks.Add(queue.Leaf(t))
	}
	return queue.Branch(tracks), nil
}

// Artist is the Artist entry variant. Its Expand implements §4.3's Artist.expand: search, list
// albums, then recursively expand one Album entry per listed album through the same sequential
// resolver, yielding a Queue of Queues of Tracks that Flatten later collapses.
type Artist struct {
	entryText string
}

// NewArtist creates an Artist entry from a parsed input line (the #ARTIST directive).
func NewArtist(entryText string) *Artist {
	return &Artist{entryText: entryText}
}

// EntryText returns the original input line.
func (e *Artist) EntryText() string { return e.entryText }

// Expand implements Artist.expand.
func (e *Artist) Expand(ctx context.Context, gw Gateway, logger *zap.Logger) (queue.Node, error) {
	artistID, err := gw.SearchArtist(ctx, e.entryText)
	if err != nil {
		if errors.Is(err, resolve.ErrNotFound) {
			logNotFound(logger, e.entryText)
			return emptyNode(), nil
		}
		return queue.Node{}, wrapGatewayErr(logger, err, "search_artist", e.entryText)
	}

	albumIDs, err := gw.GetArtistAlbums(ctx, artistID)
	if err != nil {
		return queue.Node{}, wrapGatewayErr(logger, err, "get_artist_albums", e.entryText)
	}

	albums := queue.New[Entry]()
	for _, id := range albumIDs {
		albums.Add(newAlbumFromID(e.entryText, id))
	}

	expanded := queue.ResolveAll(ctx, albums, func(ctx context.Context, en Entry) (queue.Node, error) {
		return en.Expand(ctx, gw, logger)
	})
	return queue.Branch(expanded), nil
}

// Dispatch is Queue.dispatch() from §4.4: the sequential resolveAll(x -> x.expand()) the Playlist
// controller's expand stage drives over the top-level parsed entries.
func Dispatch(ctx context.Context, entries *queue.Queue[Entry], gw Gateway, logger *zap.Logger) *queue.Queue[queue.Node] {
	return queue.ResolveAll(ctx, entries, func(ctx context.Context, e Entry) (queue.Node, error) {
		return e.Expand(ctx, gw, logger)
	})
}
