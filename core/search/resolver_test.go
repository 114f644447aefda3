package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/wendellddr/Bot-Spotify-sub000/core/lavalink"
	"github.com/wendellddr/Bot-Spotify-sub000/model"
)

type fakeLoader struct {
	mu       sync.Mutex
	results  map[string]lavalink.LoadResult
	resolved []string
}

func (l *fakeLoader) Resolve(ctx context.Context, identifier string) (lavalink.LoadResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resolved = append(l.resolved, identifier)
	if res, ok := l.results[identifier]; ok {
		return res, nil
	}
	return lavalink.EmptyResult{}, nil
}

func (l *fakeLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.resolved)
}

type fakeSpotify struct {
	name    string
	entries []SpotifyEntry
	calls   int
}

func (s *fakeSpotify) Lookup(ctx context.Context, link SpotifyLink) (string, []SpotifyEntry, error) {
	s.calls++
	return s.name, s.entries, nil
}

type memCache struct {
	data map[string][]string
}

func (c *memCache) Get(ctx context.Context, provider, key string) ([]string, error) {
	return c.data[provider+"/"+key], nil
}

func (c *memCache) Set(ctx context.Context, provider, key string, ids []string) error {
	c.data[provider+"/"+key] = ids
	return nil
}

func track(id string) lavalink.Track {
	return lavalink.Track{Encoded: "enc-" + id, Info: model.TrackInfo{Identifier: id, Title: id}}
}

func TestIdentifier(t *testing.T) {
	cases := map[string]string{
		"never gonna give you up":      "ytsearch:never gonna give you up",
		"  spaced  ":                   "ytsearch:spaced",
		"https://youtu.be/dQw4w9WgXcQ": "https://youtu.be/dQw4w9WgXcQ",
		"scsearch:lofi":                "scsearch:lofi",
		"ftp://example.com/file.mp3":   "ytsearch:ftp://example.com/file.mp3",
	}
	for in, want := range cases {
		if got := Identifier(in); got != want {
			t.Errorf("Identifier(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestParseSpotifyLink(t *testing.T) {
	cases := []struct {
		in   string
		kind string
		id   string
		ok   bool
	}{
		{"https://open.spotify.com/track/abc123?si=xyz", KindTrack, "abc123", true},
		{"https://open.spotify.com/intl-de/album/alb1", KindAlbum, "alb1", true},
		{"spotify:playlist:pl9", KindPlaylist, "pl9", true},
		{"https://open.spotify.com/artist/a1", "", "", false},
		{"https://example.com/track/abc", "", "", false},
		{"spotify:track:", "", "", false},
	}
	for _, c := range cases {
		link, ok := ParseSpotifyLink(c.in)
		if ok != c.ok {
			t.Errorf("%s: expected ok=%v, got %v", c.in, c.ok, ok)
			continue
		}
		if ok && (link.Kind != c.kind || link.ID != c.id) {
			t.Errorf("%s: expected %s/%s, got %s/%s", c.in, c.kind, c.id, link.Kind, link.ID)
		}
	}
}

func TestResolveSearchTakesBestMatch(t *testing.T) {
	loader := &fakeLoader{results: map[string]lavalink.LoadResult{
		"ytsearch:song": lavalink.SearchResult{Tracks: []lavalink.Track{track("a"), track("b")}},
	}}
	r := NewResolver(loader, nil, nil)

	res, err := r.Resolve(context.Background(), "song")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(res.Tracks) != 1 || res.Tracks[0].Encoded != "enc-a" {
		t.Errorf("Expected best match only, got %+v", res.Tracks)
	}
	if res.PlaylistName != "" {
		t.Errorf("Expected no playlist name, got %q", res.PlaylistName)
	}
}

func TestResolvePlaylistAndErrors(t *testing.T) {
	loader := &fakeLoader{results: map[string]lavalink.LoadResult{
		"https://yt/list": lavalink.PlaylistResult{Name: "Mix", SelectedTrack: -1, Tracks: []lavalink.Track{track("a"), track("b")}},
		"https://yt/bad":  lavalink.ErrorResult{Message: "blocked", Severity: "common"},
	}}
	r := NewResolver(loader, nil, nil)
	ctx := context.Background()

	res, err := r.Resolve(ctx, "https://yt/list")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(res.Tracks) != 2 || res.PlaylistName != "Mix" {
		t.Errorf("Expected 2 tracks from Mix, got %d from %q", len(res.Tracks), res.PlaylistName)
	}

	var loadErr lavalink.ErrorResult
	if _, err := r.Resolve(ctx, "https://yt/bad"); !errors.As(err, &loadErr) {
		t.Errorf("Expected ErrorResult, got %v", err)
	}
	if _, err := r.Resolve(ctx, "nothing here"); !errors.Is(err, ErrNoMatches) {
		t.Errorf("Expected ErrNoMatches, got %v", err)
	}
	if _, err := r.Resolve(ctx, "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("Expected ErrEmptyQuery, got %v", err)
	}
	if _, err := r.Resolve(ctx, "spotify:track:x"); !errors.Is(err, ErrSpotifyDisabled) {
		t.Errorf("Expected ErrSpotifyDisabled, got %v", err)
	}
}

func TestResolveSpotifyKeepsOrderAndCaches(t *testing.T) {
	loader := &fakeLoader{results: map[string]lavalink.LoadResult{
		"ytsearch:Artist A - One":   lavalink.SearchResult{Tracks: []lavalink.Track{track("one")}},
		"ytsearch:Artist B - Two":   lavalink.SearchResult{Tracks: []lavalink.Track{track("two")}},
		"ytsearch:Artist C - Three": lavalink.SearchResult{Tracks: []lavalink.Track{track("three")}},
	}}
	src := &fakeSpotify{name: "Road Trip", entries: []SpotifyEntry{
		{Title: "One", Artists: []string{"Artist A"}},
		{Title: "Missing", Artists: []string{"Nobody"}},
		{Title: "Two", Artists: []string{"Artist B"}},
		{Title: "Three", Artists: []string{"Artist C"}},
	}}
	cache := &memCache{data: make(map[string][]string)}
	r := NewResolver(loader, src, cache)
	ctx := context.Background()

	res, err := r.Resolve(ctx, "https://open.spotify.com/playlist/p1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	var got []string
	for _, raw := range res.Tracks {
		got = append(got, raw.Encoded)
	}
	if strings.Join(got, ",") != "enc-one,enc-two,enc-three" {
		t.Errorf("Expected ordered matches without the miss, got %v", got)
	}
	if res.PlaylistName != "Road Trip" {
		t.Errorf("Expected playlist name Road Trip, got %q", res.PlaylistName)
	}

	cached := cache.data["spotify/playlist:p1"]
	if len(cached) != 5 || cached[0] != "Road Trip" {
		t.Errorf("Expected name plus 4 queries cached, got %v", cached)
	}

	if _, err := r.Resolve(ctx, "spotify:playlist:p1"); err != nil {
		t.Fatalf("Second resolve failed: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("Expected Spotify API called once, got %d", src.calls)
	}
	if loader.count() != 8 {
		t.Errorf("Expected 8 node lookups, got %d", loader.count())
	}
}

func TestSpotifyEntryQuery(t *testing.T) {
	e := SpotifyEntry{Title: "Song", Artists: []string{"A", "B"}}
	if q := e.Query(); q != "ytsearch:A, B - Song" {
		t.Errorf("Unexpected query: %s", q)
	}
	if q := (SpotifyEntry{Title: "Solo"}).Query(); q != "ytsearch:Solo" {
		t.Errorf("Unexpected query: %s", q)
	}
	if q := (SpotifyEntry{}).Query(); q != "" {
		t.Errorf("Expected empty query, got %s", q)
	}
}
