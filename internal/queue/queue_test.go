package queue

import (
	"context"
	"errors"
	"testing"

	"playlistgen/internal/track"
)

func mkResolved(id, entryText string) *track.Track {
	t := track.Unresolved(entryText)
	t.ApplySimple(id, track.URIFor(id), "Title "+id, "Artist", []string{"Artist"}, "")
	return t
}

func TestDedupIdempotent(t *testing.T) {
	q := New(mkResolved("a", "a"), mkResolved("a", "a-dup"), mkResolved("b", "b"))

	once := Dedup(q)
	twice := Dedup(once)

	if once.Size() != twice.Size() {
		t.Fatalf("dedup not idempotent: once=%d twice=%d", once.Size(), twice.Size())
	}
	for i, tr := range once.Items() {
		if track.Key(tr) != track.Key(twice.Items()[i]) {
			t.Fatalf("dedup output differs at index %d", i)
		}
	}
	if once.Size() != 2 {
		t.Fatalf("expected 2 distinct tracks, got %d", once.Size())
	}
}

func TestDedupKeepsFirstOccurrence(t *testing.T) {
	first := mkResolved("a", "a")
	second := mkResolved("a", "a")
	q := New(first, second)

	out := Dedup(q)
	if out.Size() != 1 {
		t.Fatalf("expected 1 track after dedup, got %d", out.Size())
	}
	if out.Items()[0] != first {
		t.Fatalf("dedup must keep the first occurrence")
	}
}

func TestDedupUnresolvedFallsBackToEntryText(t *testing.T) {
	a := track.Unresolved("foo")
	b := track.Unresolved("FOO")
	q := New(a, b)

	out := Dedup(q)
	if out.Size() != 1 {
		t.Fatalf("expected unresolved tracks with equal entry text to dedup, got %d", out.Size())
	}
}

func TestFlattenIdempotent(t *testing.T) {
	flat := New(Leaf(mkResolved("a", "a")), Leaf(mkResolved("b", "b")))

	out := Flatten(flat)
	if out.Size() != 2 {
		t.Fatalf("expected 2 tracks, got %d", out.Size())
	}

	// Re-wrapping already-flat leaves and flattening again must be a no-op.
	rewrapped := New[Node]()
	for _, tr := range out.Items() {
		rewrapped.Add(Leaf(tr))
	}
	again := Flatten(rewrapped)
	if again.Size() != out.Size() {
		t.Fatalf("flatten of a flat queue changed size: %d vs %d", again.Size(), out.Size())
	}
}

func TestFlattenNested(t *testing.T) {
	inner := New(Leaf(mkResolved("a", "a")), Leaf(mkResolved("b", "b")))
	outer := New(Branch(inner), Leaf(mkResolved("c", "c")))

	out := Flatten(outer)
	ids := []string{}
	for _, tr := range out.Items() {
		ids = append(ids, tr.ID)
	}
	want := []string{"a", "b", "c"}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestGroupStableFirstAppearanceOrder(t *testing.T) {
	aSong := mkResolved("1", "A-song")
	bSong := mkResolved("2", "B-song")
	aOther := mkResolved("3", "A-other")

	aSong.PrimaryArtist = "A"
	bSong.PrimaryArtist = "B"
	aOther.PrimaryArtist = "A"

	q := New(aSong, bSong, aOther)
	grouped := Group(q, func(tr *track.Track) string { return Lower(tr.PrimaryArtist) })

	got := grouped.Items()
	want := []*track.Track{aSong, aOther, bSong}
	if len(got) != len(want) {
		t.Fatalf("got %d items, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestGroupEmptyKeyFormsOwnGroup(t *testing.T) {
	known := mkResolved("1", "known")
	known.PrimaryArtist = "Known"
	unknown1 := mkResolved("2", "unknown1")
	unknown1.PrimaryArtist = ""
	unknown2 := mkResolved("3", "unknown2")
	unknown2.PrimaryArtist = ""

	q := New(unknown1, known, unknown2)
	grouped := Group(q, func(tr *track.Track) string { return Lower(tr.PrimaryArtist) })

	got := grouped.Items()
	want := []*track.Track{unknown1, unknown2, known}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestResolveAllSequentialOrderAndSwallowsErrors(t *testing.T) {
	items := New(1, 2, 3, 4)
	var seen []int

	out := ResolveAll(context.Background(), items, func(_ context.Context, n int) (int, error) {
		seen = append(seen, n)
		if n == 3 {
			return 0, errors.New("boom")
		}
		return n * 10, nil
	})

	wantSeen := []int{1, 2, 3, 4}
	if len(seen) != len(wantSeen) {
		t.Fatalf("got seen=%v, want %v", seen, wantSeen)
	}
	for i := range wantSeen {
		if seen[i] != wantSeen[i] {
			t.Fatalf("got seen=%v, want %v", seen, wantSeen)
		}
	}

	want := []int{10, 20, 40}
	got := out.Items()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestResolveAllStopsOnCancellation(t *testing.T) {
	items := New(1, 2, 3, 4)
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	out := ResolveAll(ctx, items, func(_ context.Context, n int) (int, error) {
		calls++
		if n == 2 {
			cancel()
		}
		return n, nil
	})

	if calls != 2 {
		t.Fatalf("expected exactly 2 calls before cancellation stopped further dispatch, got %d", calls)
	}
	if out.Size() != 2 {
		t.Fatalf("expected 2 collected results, got %d", out.Size())
	}
}

func TestSortIsStable(t *testing.T) {
	type pair struct {
		key, orig int
	}
	items := New(
		pair{key: 1, orig: 0},
		pair{key: 2, orig: 1},
		pair{key: 1, orig: 2},
		pair{key: 2, orig: 3},
	)
	items.Sort(func(a, b pair) bool { return a.key < b.key })

	got := items.Items()
	want := []pair{{1, 0}, {1, 2}, {2, 1}, {2, 3}}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestConcatPreservesOrder(t *testing.T) {
	a := New(1, 2)
	b := New(3, 4)
	a.Concat(b)

	want := []int{1, 2, 3, 4}
	got := a.Items()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
