package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wendellddr/Bot-Spotify-sub000/core/lavalink"
	"github.com/wendellddr/Bot-Spotify-sub000/core/music"
	"github.com/wendellddr/Bot-Spotify-sub000/logger"
)

const (
	searchPrefix      = "ytsearch:"
	spotifyProvider   = "spotify"
	maxParallelLoads  = 4
	maxSpotifyEntries = 100
)

var (
	// ErrEmptyQuery is returned for blank input.
	ErrEmptyQuery = errors.New("search: empty query")
	// ErrNoMatches means the node found nothing for the query.
	ErrNoMatches = errors.New("search: no matches")
	// ErrSpotifyDisabled means a Spotify link was given but no credentials are configured.
	ErrSpotifyDisabled = errors.New("search: spotify links are not enabled")
)

// Loader resolves an identifier on an audio node.
type Loader interface {
	Resolve(ctx context.Context, identifier string) (lavalink.LoadResult, error)
}

// Cache stores identifier lists produced from external links.
type Cache interface {
	Get(ctx context.Context, provider, key string) ([]string, error)
	Set(ctx context.Context, provider, key string, identifiers []string) error
}

// Result is what a query resolved to.
type Result struct {
	Tracks       []music.RawTrack
	PlaylistName string
}

// Resolver turns user input into raw tracks the music manager accepts.
type Resolver struct {
	loader  Loader
	spotify SpotifySource
	cache   Cache
}

// NewResolver creates a resolver. spotify and cache may be nil.
func NewResolver(loader Loader, spotify SpotifySource, cache Cache) *Resolver {
	return &Resolver{loader: loader, spotify: spotify, cache: cache}
}

// Identifier maps free input to a node identifier: URLs and prefixed
// searches pass through, anything else becomes a YouTube search.
func Identifier(query string) string {
	query = strings.TrimSpace(query)
	if isURL(query) || hasSearchPrefix(query) {
		return query
	}
	return searchPrefix + query
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func hasSearchPrefix(s string) bool {
	for _, p := range []string{"ytsearch:", "ytmsearch:", "scsearch:"} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// Resolve looks the query up. Search queries yield the best match,
// playlists yield every track (or only the selected one, when the link
// points at a track inside a playlist).
func (r *Resolver) Resolve(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	if link, ok := ParseSpotifyLink(query); ok {
		return r.resolveSpotify(ctx, link)
	}

	res, err := r.loader.Resolve(ctx, Identifier(query))
	if err != nil {
		return nil, err
	}
	if e, ok := res.(lavalink.ErrorResult); ok {
		return nil, e
	}

	raws := music.RawTracksFromResult(res, true)
	if len(raws) == 0 {
		return nil, ErrNoMatches
	}

	out := &Result{Tracks: raws}
	if p, ok := res.(lavalink.PlaylistResult); ok && len(raws) > 1 {
		out.PlaylistName = p.Name
	}
	return out, nil
}

// ========== Spotify ==========

func (r *Resolver) resolveSpotify(ctx context.Context, link SpotifyLink) (*Result, error) {
	if r.spotify == nil {
		return nil, ErrSpotifyDisabled
	}

	name, queries, err := r.spotifyQueries(ctx, link)
	if err != nil {
		return nil, err
	}
	if len(queries) > maxSpotifyEntries {
		queries = queries[:maxSpotifyEntries]
	}

	// Each query resolves independently; order is kept by index.
	found := make([]*music.RawTrack, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)
	for i, q := range queries {
		g.Go(func() error {
			res, err := r.loader.Resolve(gctx, q)
			if err != nil {
				return err
			}
			raws := music.RawTracksFromResult(res, true)
			if len(raws) == 0 {
				logger.Debug("No match for Spotify entry", logger.String("query", q))
				return nil
			}
			found[i] = &raws[0]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolve spotify %s: %w", link.Kind, err)
	}

	out := &Result{}
	for _, raw := range found {
		if raw != nil {
			out.Tracks = append(out.Tracks, *raw)
		}
	}
	if len(out.Tracks) == 0 {
		return nil, ErrNoMatches
	}
	if link.Kind != KindTrack {
		out.PlaylistName = name
	}
	return out, nil
}

// spotifyQueries returns the collection name and one search identifier per
// entry. The cached layout is the name followed by the identifiers.
func (r *Resolver) spotifyQueries(ctx context.Context, link SpotifyLink) (string, []string, error) {
	key := link.Kind + ":" + link.ID

	if r.cache != nil {
		cached, err := r.cache.Get(ctx, spotifyProvider, key)
		if err != nil {
			logger.Warn("Search cache read failed", logger.String("key", key), logger.ErrorField(err))
		} else if len(cached) > 1 {
			return cached[0], cached[1:], nil
		}
	}

	name, entries, err := r.spotify.Lookup(ctx, link)
	if err != nil {
		return "", nil, fmt.Errorf("spotify lookup %s: %w", key, err)
	}
	queries := make([]string, 0, len(entries))
	for _, e := range entries {
		if q := e.Query(); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return "", nil, ErrNoMatches
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, spotifyProvider, key, append([]string{name}, queries...)); err != nil {
			logger.Warn("Search cache write failed", logger.String("key", key), logger.ErrorField(err))
		}
	}
	return name, queries, nil
}
