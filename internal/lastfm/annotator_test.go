package lastfm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"playlistgen/internal/track"
)

func TestAnnotateSetsPlaycountOnSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"track":{"playcount":"12345"}}`))
	}))
	defer server.Close()

	a := New("test-key", zap.NewNop())
	a.httpClient = server.Client()
	a.baseURL = server.URL

	tr := trackFixture()
	a.Annotate(context.Background(), tr)
	if tr.Playcount != 12345 {
		t.Fatalf("expected playcount 12345, got %d", tr.Playcount)
	}
}

func TestAnnotateLeavesUnknownOnAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":6,"message":"Track not found"}`))
	}))
	defer server.Close()

	a := New("test-key", zap.NewNop())
	a.httpClient = server.Client()
	a.baseURL = server.URL

	tr := trackFixture()
	a.Annotate(context.Background(), tr)
	if tr.Playcount != track.UnknownInt {
		t.Fatalf("expected playcount to remain unknown, got %d", tr.Playcount)
	}
}

func TestAnnotateNoAPIKeyLeavesUnknown(t *testing.T) {
	a := New("", zap.NewNop())
	tr := trackFixture()
	a.Annotate(context.Background(), tr)
	if tr.Playcount != track.UnknownInt {
		t.Fatalf("expected playcount to remain unknown without an API key, got %d", tr.Playcount)
	}
}

func trackFixture() *track.Track {
	tr := track.Unresolved("Everything In Its Right Place")
	tr.ApplySimple("t1", "spotify:track:t1", "Everything In Its Right Place", "Radiohead", []string{"Radiohead"}, "Kid A")
	return tr
}
