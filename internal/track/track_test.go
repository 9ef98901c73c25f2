package track

import "testing"

func TestEqualFallsBackToEntryText(t *testing.T) {
	a := Unresolved("foo")
	b := Unresolved("FOO")

	if !Equal(a, b) {
		t.Fatalf("expected unresolved tracks with case-differing entry text to be equal")
	}
}

func TestEqualUsesURIWhenResolved(t *testing.T) {
	a := Unresolved("foo")
	a.ApplySimple("id1", URIFor("id1"), "Foo Song", "Foo Artist", []string{"Foo Artist"}, "")

	b := Unresolved("a different query")
	b.ApplySimple("id1", URIFor("id1"), "Foo Song", "Foo Artist", []string{"Foo Artist"}, "")

	if !Equal(a, b) {
		t.Fatalf("expected tracks resolving to the same URI to be equal regardless of entry text")
	}
}

func TestApplyFullNeverRegressesToSimple(t *testing.T) {
	tr := Unresolved("foo")
	tr.ApplyFull("id1", URIFor("id1"), "Foo Song", "Foo Artist", []string{"Foo Artist"}, "Album", 42)
	if !tr.IsFull() {
		t.Fatalf("expected track to be full after ApplyFull")
	}

	tr.ApplySimple("id2", URIFor("id2"), "Other", "Other Artist", []string{"Other Artist"}, "")
	if tr.ID != "id1" || !tr.IsFull() {
		t.Fatalf("ApplySimple must not downgrade a full track")
	}
}

func TestIDFromURI(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"spotify:track:abc123", "abc123", true},
		{"https://open.spotify.com/track/abc123?si=xyz", "abc123", true},
		{"http://open.spotify.com/track/abc123", "abc123", true},
		{"not a uri", "", false},
	}

	for _, c := range cases {
		got, ok := IDFromURI(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("IDFromURI(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestParsePlaycount(t *testing.T) {
	if got := ParsePlaycount("1234"); got != 1234 {
		t.Errorf("ParsePlaycount(1234) = %d, want 1234", got)
	}
	if got := ParsePlaycount("not a number"); got != UnknownInt {
		t.Errorf("ParsePlaycount(garbage) = %d, want %d", got, UnknownInt)
	}
}
