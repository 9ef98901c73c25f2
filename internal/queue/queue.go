// Package queue implements the generic ordered container the resolution pipeline is built on:
// add/concat/sort plus the dedup/group/flatten/resolveAll primitives the playlist controller
// composes into expand -> dedup -> order -> group -> render.
package queue

import (
	"context"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"

	"playlistgen/internal/track"
)

// Queue is an ordered, mutable sequence of items of a single type. It is never shared across
// playlist runs. Flatten, Dedup, Group and ResolveAll return a new Queue; Add, Concat and Sort
// mutate the receiver in place. Nothing here is itself concurrent.
type Queue[T any] struct {
	items []T
}

// New builds a Queue from the given items, copying the slice so later Adds on either side never
// alias the caller's backing array.
func New[T any](items ...T) *Queue[T] {
	q := &Queue[T]{items: make([]T, len(items))}
	copy(q.items, items)
	return q
}

// Add appends a single item.
func (q *Queue[T]) Add(item T) {
	q.items = append(q.items, item)
}

// Items returns the queue's contents in order. Callers must not mutate the returned slice.
func (q *Queue[T]) Items() []T {
	return q.items
}

// Size reports the number of items.
func (q *Queue[T]) Size() int {
	if q == nil {
		return 0
	}
	return len(q.items)
}

// Concat appends other's items after this queue's items, in order.
func (q *Queue[T]) Concat(other *Queue[T]) {
	if other == nil {
		return
	}
	q.items = append(q.items, other.items...)
}

// Sort reorders items by less, using a stable sort so that items comparing equal under less keep
// their relative order (required by §8 property 2 and every grouped-then-sorted pipeline stage).
func (q *Queue[T]) Sort(less func(a, b T) bool) {
	sort.SliceStable(q.items, func(i, j int) bool {
		return less(q.items[i], q.items[j])
	})
}

// Node is the heterogeneous payload produced by Album/Artist expansion: either a resolved leaf
// Track or a nested Queue of further Nodes (an Artist expands into a Queue of Album Queues, for
// instance). Exactly one of Track/Nested is set.
type Node struct {
	Track  *track.Track
	Nested *Queue[Node]
}

// Leaf wraps a Track as a flattenable Node.
func Leaf(t *track.Track) Node {
	return Node{Track: t}
}

// Branch wraps a nested Queue of Nodes, produced when an Entry's expansion itself yields a Queue
// of further Entries (Artist -> Albums) rather than Tracks directly.
func Branch(q *Queue[Node]) Node {
	return Node{Nested: q}
}

// Flatten performs the post-order traversal described in §4.4/§9: nested Queues are recursively
// inlined, non-Queue (leaf Track) items pass through, so the result is a flat Queue of Tracks
// regardless of how deep the Album/Artist expansion tree was. Flattening an already-flat Queue is
// a no-op (§8 property 4).
func Flatten(q *Queue[Node]) *Queue[*track.Track] {
	out := New[*track.Track]()
	var walk func(*Queue[Node])
	walk = func(q *Queue[Node]) {
		if q == nil {
			return
		}
		for _, n := range q.items {
			switch {
			case n.Nested != nil:
				walk(n.Nested)
			case n.Track != nil:
				out.Add(n.Track)
			}
		}
	}
	walk(q)
	return out
}

// Dedup returns a new Queue keeping only the first occurrence of each Track equivalence class
// (§4.4 contains/dedup, §8 property 3 and 6). A bloom filter pre-screens candidates before the
// exact case-folded key comparison, so the common case of a mostly-unique playlist avoids an
// O(n^2) pairwise scan; the exact map remains authoritative so a bloom false positive can never
// produce a false dedup (it only costs a wasted map lookup).
func Dedup(q *Queue[*track.Track]) *Queue[*track.Track] {
	out := New[*track.Track]()
	if q.Size() == 0 {
		return out
	}

	filter := bloom.NewWithEstimates(uint(q.Size()), 0.001)
	seen := make(map[string]struct{}, q.Size())

	for _, t := range q.items {
		key := track.Key(t)
		data := []byte(key)
		if filter.Test(data) {
			if _, ok := seen[key]; ok {
				continue
			}
		}
		filter.Add(data)
		seen[key] = struct{}{}
		out.Add(t)
	}
	return out
}

// Group performs a stable partition by keyFn: output concatenates groups in first-appearance
// order of the key, and items within a group keep their pre-group relative order (§4.4 group,
// §9's empty-string-keys-form-their-own-group decision).
func Group[T any](q *Queue[T], keyFn func(T) string) *Queue[T] {
	out := New[T]()
	order := make([]string, 0, q.Size())
	buckets := make(map[string][]T, q.Size())

	for _, item := range q.items {
		k := keyFn(item)
		if _, ok := buckets[k]; !ok {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], item)
	}
	for _, k := range order {
		out.items = append(out.items, buckets[k]...)
	}
	return out
}

// ResolveAll is the sequential asynchronous map of §4.4/§5: for each item, in order, it awaits fn
// to completion before starting the next. A ctx cancellation stops issuing further items once the
// in-flight call returns; an item whose fn call returns an error contributes nothing to the result
// (propagation is fully swallowed per §7 — callers that need to log a diagnostic do so inside fn
// before returning the error).
func ResolveAll[T, R any](ctx context.Context, q *Queue[T], fn func(context.Context, T) (R, error)) *Queue[R] {
	out := New[R]()
	for _, item := range q.items {
		if ctx.Err() != nil {
			break
		}
		r, err := fn(ctx, item)
		if err != nil {
			continue
		}
		out.Add(r)
	}
	return out
}

// Lower is a convenience keyFn helper for the artist/album/entry grouping keys §4.5 defines as
// lowercase(field).
func Lower(s string) string {
	return strings.ToLower(s)
}
