package lavalink

import (
	"encoding/json"
	"fmt"

	"github.com/wendellddr/Bot-Spotify-sub000/model"
)

// Track is a track as returned by the node.
type Track struct {
	Encoded    string          `json:"encoded"`
	Info       model.TrackInfo `json:"info"`
	PluginInfo json.RawMessage `json:"pluginInfo,omitempty"`
}

// LoadType is the wire discriminator of a loadtracks response.
type LoadType string

const (
	LoadTypeTrack    LoadType = "track"
	LoadTypePlaylist LoadType = "playlist"
	LoadTypeSearch   LoadType = "search"
	LoadTypeEmpty    LoadType = "empty"
	LoadTypeError    LoadType = "error"
)

// LoadResult is one of EmptyResult, ErrorResult, TrackResult, PlaylistResult
// or SearchResult. It is decoded once at the node boundary.
type LoadResult interface {
	Type() LoadType
}

// EmptyResult means the identifier matched nothing.
type EmptyResult struct{}

// ErrorResult carries a provider failure.
type ErrorResult struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

// TrackResult is a direct single-track match (usually a URL).
type TrackResult struct {
	Track Track
}

// PlaylistResult is a playlist or album.
type PlaylistResult struct {
	Name          string
	SelectedTrack int // -1 when none
	Tracks        []Track
}

// SearchResult is an ordered list of search candidates.
type SearchResult struct {
	Tracks []Track
}

func (EmptyResult) Type() LoadType    { return LoadTypeEmpty }
func (ErrorResult) Type() LoadType    { return LoadTypeError }
func (TrackResult) Type() LoadType    { return LoadTypeTrack }
func (PlaylistResult) Type() LoadType { return LoadTypePlaylist }
func (SearchResult) Type() LoadType   { return LoadTypeSearch }

// Error makes ErrorResult usable as an error value.
func (e ErrorResult) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("load failed (%s): %s: %s", e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("load failed (%s): %s", e.Severity, e.Message)
}

type rawLoadResult struct {
	LoadType LoadType        `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

type rawPlaylist struct {
	Info struct {
		Name          string `json:"name"`
		SelectedTrack int    `json:"selectedTrack"`
	} `json:"info"`
	Tracks []Track `json:"tracks"`
}

// DecodeLoadResult decodes a /v4/loadtracks response body.
func DecodeLoadResult(body []byte) (LoadResult, error) {
	var raw rawLoadResult
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode load result: %w", err)
	}

	switch raw.LoadType {
	case LoadTypeEmpty:
		return EmptyResult{}, nil

	case LoadTypeError:
		var e ErrorResult
		if err := json.Unmarshal(raw.Data, &e); err != nil {
			return nil, fmt.Errorf("decode error result: %w", err)
		}
		return e, nil

	case LoadTypeTrack:
		var t Track
		if err := json.Unmarshal(raw.Data, &t); err != nil {
			return nil, fmt.Errorf("decode track result: %w", err)
		}
		return TrackResult{Track: t}, nil

	case LoadTypePlaylist:
		var p rawPlaylist
		if err := json.Unmarshal(raw.Data, &p); err != nil {
			return nil, fmt.Errorf("decode playlist result: %w", err)
		}
		return PlaylistResult{Name: p.Info.Name, SelectedTrack: p.Info.SelectedTrack, Tracks: p.Tracks}, nil

	case LoadTypeSearch:
		var tracks []Track
		if err := json.Unmarshal(raw.Data, &tracks); err != nil {
			return nil, fmt.Errorf("decode search result: %w", err)
		}
		return SearchResult{Tracks: tracks}, nil
	}

	return nil, fmt.Errorf("unknown load type %q", raw.LoadType)
}

// Tracks returns the candidate tracks held by r, in node order.
func Tracks(r LoadResult) []Track {
	switch v := r.(type) {
	case TrackResult:
		return []Track{v.Track}
	case PlaylistResult:
		return v.Tracks
	case SearchResult:
		return v.Tracks
	}
	return nil
}
