package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// Spotify link kinds.
const (
	KindTrack    = "track"
	KindAlbum    = "album"
	KindPlaylist = "playlist"
)

const spotifyPageSize = 50

// SpotifyLink is a parsed open.spotify.com URL or spotify: URI.
type SpotifyLink struct {
	Kind string
	ID   string
}

// ParseSpotifyLink recognises https://open.spotify.com/{kind}/{id} (with an
// optional intl-xx segment) and spotify:{kind}:{id}.
func ParseSpotifyLink(s string) (SpotifyLink, bool) {
	var kind, id string

	if strings.HasPrefix(s, "spotify:") {
		parts := strings.Split(s, ":")
		if len(parts) != 3 {
			return SpotifyLink{}, false
		}
		kind, id = parts[1], parts[2]
	} else {
		u, err := url.Parse(s)
		if err != nil || u.Host != "open.spotify.com" {
			return SpotifyLink{}, false
		}
		segs := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segs) > 0 && strings.HasPrefix(segs[0], "intl-") {
			segs = segs[1:]
		}
		if len(segs) != 2 {
			return SpotifyLink{}, false
		}
		kind, id = segs[0], segs[1]
	}

	switch kind {
	case KindTrack, KindAlbum, KindPlaylist:
	default:
		return SpotifyLink{}, false
	}
	if id == "" {
		return SpotifyLink{}, false
	}
	return SpotifyLink{Kind: kind, ID: id}, true
}

// SpotifyEntry is the metadata needed to find a track elsewhere.
type SpotifyEntry struct {
	Title   string
	Artists []string
}

// Query builds a YouTube search for the entry.
func (e SpotifyEntry) Query() string {
	if e.Title == "" {
		return ""
	}
	if len(e.Artists) == 0 {
		return searchPrefix + e.Title
	}
	return searchPrefix + strings.Join(e.Artists, ", ") + " - " + e.Title
}

// SpotifySource looks up the tracks behind a Spotify link.
type SpotifySource interface {
	Lookup(ctx context.Context, link SpotifyLink) (name string, entries []SpotifyEntry, err error)
}

// SpotifyClient is a SpotifySource backed by the Web API with
// client-credentials auth.
type SpotifyClient struct {
	client *spotify.Client
}

// NewSpotifyClient builds an app-authenticated client. Tokens refresh
// automatically through the oauth2 transport.
func NewSpotifyClient(ctx context.Context, clientID, clientSecret string) *SpotifyClient {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return &SpotifyClient{client: spotify.New(cfg.Client(ctx))}
}

// Lookup implements SpotifySource.
func (c *SpotifyClient) Lookup(ctx context.Context, link SpotifyLink) (string, []SpotifyEntry, error) {
	id := spotify.ID(link.ID)

	switch link.Kind {
	case KindTrack:
		track, err := c.client.GetTrack(ctx, id)
		if err != nil {
			return "", nil, fmt.Errorf("error getting track: %w", err)
		}
		return track.Name, []SpotifyEntry{entryOf(track.SimpleTrack)}, nil

	case KindAlbum:
		album, err := c.client.GetAlbum(ctx, id)
		if err != nil {
			return "", nil, fmt.Errorf("error getting album: %w", err)
		}
		var entries []SpotifyEntry
		for offset := 0; offset < maxSpotifyEntries; offset += spotifyPageSize {
			page, err := c.client.GetAlbumTracks(ctx, id, spotify.Limit(spotifyPageSize), spotify.Offset(offset))
			if err != nil {
				return "", nil, fmt.Errorf("error getting album tracks: %w", err)
			}
			for _, t := range page.Tracks {
				entries = append(entries, entryOf(t))
			}
			if len(page.Tracks) < spotifyPageSize {
				break
			}
		}
		return album.Name, entries, nil

	case KindPlaylist:
		playlist, err := c.client.GetPlaylist(ctx, id, spotify.Fields("name"))
		if err != nil {
			return "", nil, fmt.Errorf("error getting playlist: %w", err)
		}
		var entries []SpotifyEntry
		for offset := 0; offset < maxSpotifyEntries; offset += spotifyPageSize {
			page, err := c.client.GetPlaylistItems(ctx, id, spotify.Limit(spotifyPageSize), spotify.Offset(offset))
			if err != nil {
				return "", nil, fmt.Errorf("error getting playlist items: %w", err)
			}
			for _, item := range page.Items {
				// Episodes and local files have no track.
				if item.Track.Track == nil {
					continue
				}
				entries = append(entries, entryOf(item.Track.Track.SimpleTrack))
			}
			if len(page.Items) < spotifyPageSize {
				break
			}
		}
		return playlist.Name, entries, nil
	}

	return "", nil, fmt.Errorf("unsupported spotify link kind %q", link.Kind)
}

func entryOf(t spotify.SimpleTrack) SpotifyEntry {
	e := SpotifyEntry{Title: t.Name}
	for _, a := range t.Artists {
		e.Artists = append(e.Artists, a.Name)
	}
	return e
}
