// Package resolve implements the throttled remote-lookup engine ("the Gateway"): a single
// strictly-sequential client over the Spotify Web API that every Entry expansion drives.
package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"playlistgen/internal/track"
	"playlistgen/pkg/fuzzy"
)

// ErrNotFound is returned when a search yields zero usable hits — a recoverable condition per the
// error taxonomy, never fatal to a playlist run.
var ErrNotFound = errors.New("not found")

const (
	// requestInterval is the minimum spacing between dispatched requests (the "100ms floor").
	requestInterval = 100 * time.Millisecond
	// fullTrackCacheSize bounds the by-ID full-track response cache.
	fullTrackCacheSize = 512
	// filePermission is the permission used for the persisted OAuth token file.
	filePermission = 0o600

	oauthShutdownTimeout    = 5 * time.Second
	oauthTimeout            = 5 * time.Minute
	oauthHTTPReadTimeout    = 10 * time.Second
	oauthHTTPWriteTimeout   = 10 * time.Second
	oauthServerStartupDelay = 100 * time.Millisecond
	oauthState              = "playlistgen-auth-state"
)

// Config holds the credentials and endpoints needed to authenticate against the Spotify Web API.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenPath    string
}

// Gateway is the single owned object encapsulating the "earliest next request" pacing clock
// (§5/§9) and the authenticated Spotify client every Entry expansion calls through.
type Gateway struct {
	config     Config
	logger     *zap.Logger
	auth       *spotifyauth.Authenticator
	client     *spotify.Client
	normalizer *fuzzy.Normalizer
	limiter    *rate.Limiter
	fullCache  *lru.Cache[string, *TrackHit]
	metrics    *gatewayMetrics
}

// TrackHit is the Gateway's track response DTO: callers (internal/entry) decide whether to apply
// it as a Track's simple or full response, so the Gateway itself stays free of §3's Track
// lifecycle rules. Popularity is track.UnknownInt on a Simple hit (search/album-listing result).
type TrackHit struct {
	ID            string
	URI           string
	Title         string
	PrimaryArtist string
	AllArtists    []string
	AlbumName     string
	Popularity    int
}

// tokenData is the on-disk shape of a persisted OAuth token.
type tokenData struct {
	Token *oauth2.Token `json:"token"`
}

// NewGateway builds a Gateway. Pass a non-nil *prometheus.Registry as registry to observe
// request volume/latency/error rate; pass nil to skip instrumentation entirely.
func NewGateway(cfg Config, logger *zap.Logger, registry *prometheus.Registry) *Gateway {
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(cfg.RedirectURL),
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
	)

	cache, _ := lru.New[string, *TrackHit](fullTrackCacheSize)

	g := &Gateway{
		config:     cfg,
		logger:     logger,
		auth:       auth,
		normalizer: fuzzy.NewNormalizer(),
		limiter:    rate.NewLimiter(rate.Every(requestInterval), 1),
		fullCache:  cache,
	}

	if registry != nil {
		g.metrics = newGatewayMetrics(registry)
	}

	return g
}

// call enforces the pacing floor, then runs fn, recording Prometheus observations when metrics
// are enabled. It is the single chokepoint every remote operation below goes through.
func (g *Gateway) call(ctx context.Context, endpoint string, fn func() error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	err := fn()
	if g.metrics != nil {
		g.metrics.requests.WithLabelValues(endpoint).Inc()
		g.metrics.duration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		if err != nil {
			g.metrics.errors.WithLabelValues(endpoint).Inc()
		}
	}
	return err
}

// Authenticate loads a saved token, falling back to an interactive OAuth flow if none exists or
// the saved token has been revoked.
func (g *Gateway) Authenticate(ctx context.Context) error {
	token, err := g.loadToken()
	if err != nil {
		g.logger.Info("no saved token found, starting OAuth flow")
		return g.startOAuthFlow(ctx)
	}

	client := spotify.New(g.auth.Client(ctx, token))
	if _, err := client.CurrentUser(ctx); err != nil {
		g.logger.Warn("saved token invalid, starting OAuth flow", zap.Error(err))
		return g.startOAuthFlow(ctx)
	}

	g.client = client
	g.logger.Info("authenticated with saved token")
	return nil
}

// SearchTrack issues the free-text track search from §4.3's Track.expand fallback branch: the
// query is normalized, empty hits are filtered, and the first remaining hit wins. ErrNotFound is
// returned when nothing usable comes back.
func (g *Gateway) SearchTrack(ctx context.Context, query string) (*TrackHit, error) {
	if g.client == nil {
		return nil, errors.New("gateway not authenticated")
	}

	normalized := g.normalizer.NormalizeTitle(query)

	var results *spotify.SearchResult
	err := g.call(ctx, "search_track", func() error {
		var searchErr error
		results, searchErr = g.client.Search(ctx, normalized, spotify.SearchTypeTrack)
		return searchErr
	})
	if err != nil {
		return nil, fmt.Errorf("track search failed: %w", err)
	}

	hits := filterEmptyTracks(results)
	if len(hits) == 0 {
		return nil, ErrNotFound
	}
	return simpleHitFromFullTrack(&hits[0]), nil
}

// GetTrack fetches a track directly by id (the Simple->Full promotion path), caching the result
// so repeated lookups of the same id (two entries resolving to the same track, or a popularity
// refresh pass re-fetching an already-full track) never re-issue the request.
func (g *Gateway) GetTrack(ctx context.Context, id string) (*TrackHit, error) {
	if cached, ok := g.fullCache.Get(id); ok {
		return cached, nil
	}
	if g.client == nil {
		return nil, errors.New("gateway not authenticated")
	}

	var full *spotify.FullTrack
	err := g.call(ctx, "get_track", func() error {
		var getErr error
		full, getErr = g.client.GetTrack(ctx, spotify.ID(id))
		return getErr
	})
	if err != nil {
		return nil, fmt.Errorf("get track failed: %w", err)
	}

	hit := fullHitFromFullTrack(full)
	g.fullCache.Add(id, hit)
	return hit, nil
}

// SearchAlbum searches for an album and returns the id of the first usable hit.
func (g *Gateway) SearchAlbum(ctx context.Context, query string) (string, error) {
	if g.client == nil {
		return "", errors.New("gateway not authenticated")
	}

	normalized := g.normalizer.NormalizeTitle(query)

	var results *spotify.SearchResult
	err := g.call(ctx, "search_album", func() error {
		var searchErr error
		results, searchErr = g.client.Search(ctx, normalized, spotify.SearchTypeAlbum)
		return searchErr
	})
	if err != nil {
		return "", fmt.Errorf("album search failed: %w", err)
	}

	if results.Albums == nil {
		return "", ErrNotFound
	}
	for _, a := range results.Albums.Albums {
		if string(a.ID) != "" && a.Name != "" {
			return string(a.ID), nil
		}
	}
	return "", ErrNotFound
}

// GetAlbumTracks fetches the full album by id and returns its track listing, in the order the
// remote response provides it, each tagged with the album's own name as its AlbumName (§4.3
// step 2-3).
func (g *Gateway) GetAlbumTracks(ctx context.Context, albumID string) ([]TrackHit, error) {
	if g.client == nil {
		return nil, errors.New("gateway not authenticated")
	}

	var album *spotify.FullAlbum
	err := g.call(ctx, "get_album", func() error {
		var getErr error
		album, getErr = g.client.GetAlbum(ctx, spotify.ID(albumID))
		return getErr
	})
	if err != nil {
		return nil, fmt.Errorf("get album failed: %w", err)
	}

	hits := make([]TrackHit, 0, len(album.Tracks.Tracks))
	for _, st := range album.Tracks.Tracks {
		artists := artistNames(st.Artists)
		primary := ""
		if len(artists) > 0 {
			primary = artists[0]
		}
		hits = append(hits, TrackHit{
			ID:            string(st.ID),
			URI:           string(st.URI),
			Title:         st.Name,
			PrimaryArtist: primary,
			AllArtists:    artists,
			AlbumName:     album.Name,
			Popularity:    track.UnknownInt,
		})
	}
	return hits, nil
}

// SearchArtist searches for an artist and returns the id of the first usable hit.
func (g *Gateway) SearchArtist(ctx context.Context, query string) (string, error) {
	if g.client == nil {
		return "", errors.New("gateway not authenticated")
	}

	normalized := g.normalizer.NormalizeArtist(query)

	var results *spotify.SearchResult
	err := g.call(ctx, "search_artist", func() error {
		var searchErr error
		results, searchErr = g.client.Search(ctx, normalized, spotify.SearchTypeArtist)
		return searchErr
	})
	if err != nil {
		return "", fmt.Errorf("artist search failed: %w", err)
	}

	if results.Artists == nil {
		return "", ErrNotFound
	}
	for _, a := range results.Artists.Artists {
		if string(a.ID) != "" && a.Name != "" {
			return string(a.ID), nil
		}
	}
	return "", ErrNotFound
}

// GetArtistAlbums lists every album id for an artist, across as many pages as the API provides.
func (g *Gateway) GetArtistAlbums(ctx context.Context, artistID string) ([]string, error) {
	if g.client == nil {
		return nil, errors.New("gateway not authenticated")
	}

	var page *spotify.SimpleAlbumPage
	err := g.call(ctx, "get_artist_albums", func() error {
		var getErr error
		page, getErr = g.client.GetArtistAlbums(ctx, spotify.ID(artistID), nil)
		return getErr
	})
	if err != nil {
		return nil, fmt.Errorf("get artist albums failed: %w", err)
	}

	ids := make([]string, 0, len(page.Albums))
	for {
		for _, a := range page.Albums {
			if string(a.ID) != "" {
				ids = append(ids, string(a.ID))
			}
		}
		err = g.call(ctx, "get_artist_albums", func() error {
			return g.client.NextPage(ctx, page)
		})
		if errors.Is(err, spotify.ErrNoMorePages) {
			return ids, nil
		}
		if err != nil {
			return nil, fmt.Errorf("get artist albums failed: %w", err)
		}
	}
}

func filterEmptyTracks(results *spotify.SearchResult) []spotify.FullTrack {
	if results == nil || results.Tracks == nil {
		return nil
	}
	valid := make([]spotify.FullTrack, 0, len(results.Tracks.Tracks))
	for _, t := range results.Tracks.Tracks {
		if string(t.ID) != "" && t.Name != "" {
			valid = append(valid, t)
		}
	}
	return valid
}

func simpleHitFromFullTrack(ft *spotify.FullTrack) *TrackHit {
	artists := artistNames(ft.Artists)
	primary := ""
	if len(artists) > 0 {
		primary = artists[0]
	}
	return &TrackHit{
		ID:            string(ft.ID),
		URI:           string(ft.URI),
		Title:         ft.Name,
		PrimaryArtist: primary,
		AllArtists:    artists,
		AlbumName:     ft.Album.Name,
		Popularity:    track.UnknownInt,
	}
}

func fullHitFromFullTrack(ft *spotify.FullTrack) *TrackHit {
	hit := simpleHitFromFullTrack(ft)
	hit.Popularity = int(ft.Popularity)
	return hit
}

func artistNames(artists []spotify.SimpleArtist) []string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return names
}

// gatewayMetrics holds the Prometheus vectors recording Gateway call volume, latency, and errors,
// keyed by endpoint.
type gatewayMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

func newGatewayMetrics(registry *prometheus.Registry) *gatewayMetrics {
	m := &gatewayMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playlistgen_gateway_requests_total",
			Help: "Total Gateway requests by endpoint.",
		}, []string{"endpoint"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "playlistgen_gateway_request_duration_seconds",
			Help: "Gateway request duration by endpoint.",
		}, []string{"endpoint"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "playlistgen_gateway_errors_total",
			Help: "Total Gateway request failures by endpoint.",
		}, []string{"endpoint"}),
	}
	registry.MustRegister(m.requests, m.duration, m.errors)
	return m
}

// startOAuthFlow runs the interactive authorization-code flow via a temporary local callback
// server.
func (g *Gateway) startOAuthFlow(ctx context.Context) error {
	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)
	server := g.startCallbackServer(codeChan, errChan, oauthState)
	if server == nil {
		return errors.New("failed to start OAuth callback server")
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), oauthShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			g.logger.Warn("failed to shut down OAuth callback server", zap.Error(err))
		}
	}()

	authURL := g.auth.AuthURL(oauthState)
	g.logger.Info("visit this URL to authorize playlistgen", zap.String("url", authURL))

	select {
	case code := <-codeChan:
		return g.completeOAuthFlow(ctx, code)
	case err := <-errChan:
		return fmt.Errorf("OAuth callback error: %w", err)
	case <-time.After(oauthTimeout):
		return errors.New("OAuth flow timed out")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) startCallbackServer(codeChan chan<- string, errChan chan<- error, expectedState string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if state := r.URL.Query().Get("state"); state != expectedState {
			errChan <- errors.New("invalid state parameter in OAuth callback")
			http.Error(w, "invalid state parameter", http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			errChan <- errors.New("no authorization code in callback")
			http.Error(w, "no authorization code", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("playlistgen authorized. You can close this window."))
		codeChan <- code
	})

	parsedURL, err := url.Parse(g.config.RedirectURL)
	if err != nil {
		g.logger.Error("invalid redirect URL", zap.Error(err))
		errChan <- fmt.Errorf("invalid redirect URL: %w", err)
		return nil
	}

	addr := parsedURL.Host
	if parsedURL.Port() == "" {
		addr += ":80"
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  oauthHTTPReadTimeout,
		WriteTimeout: oauthHTTPWriteTimeout,
	}

	go func() {
		g.logger.Debug("starting temporary OAuth callback server", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("callback server error: %w", err)
		}
	}()

	time.Sleep(oauthServerStartupDelay)
	return server
}

func (g *Gateway) completeOAuthFlow(ctx context.Context, code string) error {
	token, err := g.auth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code for token: %w", err)
	}
	if err := g.saveToken(token); err != nil {
		g.logger.Warn("failed to save token", zap.Error(err))
	}

	g.client = spotify.New(g.auth.Client(ctx, token))
	if _, err := g.client.CurrentUser(ctx); err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	g.logger.Info("OAuth flow completed")
	return nil
}

func (g *Gateway) loadToken() (*oauth2.Token, error) {
	file, err := os.Open(g.config.TokenPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	var td tokenData
	if err := json.Unmarshal(data, &td); err != nil {
		return nil, err
	}
	return td.Token, nil
}

func (g *Gateway) saveToken(token *oauth2.Token) error {
	data, err := json.MarshalIndent(tokenData{Token: token}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(g.config.TokenPath, data, filePermission)
}
