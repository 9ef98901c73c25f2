// Package render implements the Renderer (§4.7): the final stage that turns a flat Queue of
// Tracks into the newline-separated identifier list the CLI collaborator writes to its sink.
package render

import (
	"strings"

	"playlistgen/internal/queue"
	"playlistgen/internal/track"
)

// Render emits track.uri for each Track whose URI is non-empty, joined by LF, with no trailing
// newline (§4.7, §6). Tracks with an empty URI (unresolved entries) are skipped rather than
// producing a blank output line.
func Render(tracks *queue.Queue[*track.Track]) string {
	uris := make([]string, 0, tracks.Size())
	for _, t := range tracks.Items() {
		if t.URI == "" {
			continue
		}
		uris = append(uris, t.URI)
	}
	return strings.Join(uris, "\n")
}
