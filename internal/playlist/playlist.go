// Package playlist holds the Playlist top-level state (§3) and the controller that drives the
// expand -> dedup -> order -> group pipeline (§4.5) over it.
package playlist

import (
	"context"

	"go.uber.org/zap"

	"playlistgen/internal/entry"
	"playlistgen/internal/queue"
	"playlistgen/internal/track"
)

// Ordering selects how the final track sequence is reordered before grouping.
type Ordering int

const (
	// OrderNone leaves tracks in their expansion order.
	OrderNone Ordering = iota
	// OrderPopularity sorts descending by Spotify popularity, refreshing every track to a full
	// response first since popularity is only meaningful on a Full track.
	OrderPopularity
	// OrderLastFM sorts descending by Last.fm playcount, annotated sequentially per track.
	OrderLastFM
)

// Grouping selects how the final track sequence is stably partitioned after ordering.
type Grouping int

const (
	// GroupNone leaves tracks ungrouped.
	GroupNone Grouping = iota
	// GroupEntry groups by the lowercase entry_text each track was produced from.
	GroupEntry
	// GroupArtist groups by lowercase primary artist.
	GroupArtist
	// GroupAlbum groups by lowercase album name, refreshing to full responses first so album
	// names are known even for tracks that arrived as search hits.
	GroupAlbum
)

// Annotator is the Last.fm annotation contract the OrderLastFM branch drives sequentially.
type Annotator interface {
	Annotate(ctx context.Context, t *track.Track)
}

// Playlist is the mutable top-level state the Parser populates: a Queue of Entry variants plus
// the playlist-level directives. Dispatch does not modify Entries; it returns the expanded,
// flat Queue of Tracks as a separate value.
type Playlist struct {
	Entries  *queue.Queue[entry.Entry]
	Ordering Ordering
	Grouping Grouping
	// Unique mirrors §3's default-true unique flag; #UNIQUE only ever sets it, it is never unset
	// by the input grammar.
	Unique bool
}

// New builds an empty Playlist with the spec's defaults: no ordering, no grouping, unique=true.
func New() *Playlist {
	return &Playlist{
		Entries: queue.New[entry.Entry](),
		Unique:  true,
	}
}

// Dispatch runs the full pipeline described in §4.5: expand, dedup, order, group. It never
// returns an error — every remote failure during expansion is already swallowed by
// queue.ResolveAll (§7), so the worst case is an empty result.
func (p *Playlist) Dispatch(ctx context.Context, gw entry.Gateway, annotator Annotator, logger *zap.Logger) *queue.Queue[*track.Track] {
	nodes := entry.Dispatch(ctx, p.Entries, gw, logger)
	tracks := queue.Flatten(nodes)

	if p.Unique {
		tracks = queue.Dedup(tracks)
	}

	switch p.Ordering {
	case OrderPopularity:
		refreshFull(ctx, gw, tracks, logger)
		tracks.Sort(func(a, b *track.Track) bool { return a.Popularity > b.Popularity })
	case OrderLastFM:
		annotateAll(ctx, annotator, tracks)
		tracks.Sort(func(a, b *track.Track) bool { return a.Playcount > b.Playcount })
	case OrderNone:
	}

	switch p.Grouping {
	case GroupArtist:
		tracks = queue.Group(tracks, func(t *track.Track) string { return queue.Lower(t.PrimaryArtist) })
	case GroupAlbum:
		refreshFull(ctx, gw, tracks, logger)
		tracks = queue.Group(tracks, func(t *track.Track) string { return queue.Lower(t.AlbumName) })
	case GroupEntry:
		tracks = queue.Group(tracks, func(t *track.Track) string { return queue.Lower(t.EntryText) })
	case GroupNone:
	}

	return tracks
}

// refreshFull promotes every Simple track to Full via a direct by-id fetch (§3's "order-by-
// popularity therefore triggers a refresh pass"), sequentially and swallowing failures the same
// way expansion does: a track that can't be refreshed just keeps its Simple-response popularity
// sentinel.
func refreshFull(ctx context.Context, gw entry.Gateway, tracks *queue.Queue[*track.Track], logger *zap.Logger) {
	for _, t := range tracks.Items() {
		if ctx.Err() != nil {
			return
		}
		if t.IsFull() || t.ID == "" {
			continue
		}
		hit, err := gw.GetTrack(ctx, t.ID)
		if err != nil {
			logger.Warn("refresh to full response failed", zap.String("id", t.ID), zap.Error(err))
			continue
		}
		t.ApplyFull(hit.ID, hit.URI, hit.Title, hit.PrimaryArtist, hit.AllArtists, hit.AlbumName, hit.Popularity)
	}
}

// annotateAll calls the Last.fm annotator sequentially per track, per §4.5 step 3's lastfm
// branch. Unlike OrderPopularity, this never triggers a popularity refresh first (SPEC_FULL.md
// open question 2): simple-response tracks are annotated as they are, and a track the annotator
// cannot annotate (no artist or title, or a failed lookup) keeps playcount -1.
func annotateAll(ctx context.Context, annotator Annotator, tracks *queue.Queue[*track.Track]) {
	for _, t := range tracks.Items() {
		if ctx.Err() != nil {
			return
		}
		annotator.Annotate(ctx, t)
	}
}
