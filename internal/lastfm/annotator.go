// Package lastfm implements the Last.fm annotator (§4.6): play-count metadata used purely for
// #ORDER BY LASTFM ordering, fetched one track at a time and paced independently of the Spotify
// Gateway since it talks to a different host.
package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"playlistgen/internal/track"
)

const (
	baseURL         = "https://ws.audioscrobbler.com/2.0/"
	requestInterval = 100 * time.Millisecond
	requestTimeout  = 10 * time.Second
)

// Annotator calls Last.fm's track.getInfo and stores the resulting playcount on a Track, leaving
// it at track.UnknownInt on any failure — annotation failures are never fatal to a playlist run.
type Annotator struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// New builds an Annotator. A zero-value apiKey makes every Annotate call a no-op failure, which is
// the correct degrade-to-unranked behavior when no Last.fm credentials are configured.
func New(apiKey string, logger *zap.Logger) *Annotator {
	return &Annotator{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    rate.NewLimiter(rate.Every(requestInterval), 1),
		logger:     logger,
	}
}

// getInfoResponse is the subset of track.getInfo's response shape the core depends on, plus the
// top-level error envelope fields Last.fm uses for API-level failures.
type getInfoResponse struct {
	Track struct {
		Playcount string `json:"playcount"`
	} `json:"track"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// Annotate fetches play-count metadata for t and stores it, per §4.6. Errors are logged and
// swallowed: a failed annotation leaves Playcount at track.UnknownInt rather than aborting the
// ordering pass.
func (a *Annotator) Annotate(ctx context.Context, t *track.Track) {
	if t.PrimaryArtist == "" || t.Title == "" {
		return
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return
	}

	resp, err := a.getInfo(ctx, t.PrimaryArtist, t.Title)
	if err != nil {
		a.logger.Debug("lastfm getInfo failed",
			zap.String("artist", t.PrimaryArtist), zap.String("title", t.Title), zap.Error(err))
		return
	}
	t.Playcount = track.ParsePlaycount(resp.Track.Playcount)
}

func (a *Annotator) getInfo(ctx context.Context, artist, title string) (*getInfoResponse, error) {
	if a.apiKey == "" {
		return nil, errors.New("lastfm: no API key configured")
	}

	params := url.Values{}
	params.Set("method", "track.getInfo")
	params.Set("api_key", a.apiKey)
	params.Set("artist", artist)
	params.Set("track", title)
	params.Set("format", "json")
	params.Set("autocorrect", "1")

	reqURL := a.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lastfm http status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var result getInfoResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse body: %w", err)
	}
	if result.Error != 0 {
		return nil, fmt.Errorf("lastfm api error %d: %s", result.Error, result.Message)
	}
	return &result, nil
}
