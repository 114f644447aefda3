package music

import (
	"bytes"
	"encoding/json"

	"github.com/wendellddr/Bot-Spotify-sub000/core/lavalink"
	"github.com/wendellddr/Bot-Spotify-sub000/model"
)

// RawTrack is a track object as handed over by a provider or a caller before
// normalization. Providers populate different fields; Normalize knows them all.
type RawTrack struct {
	Encoded string           `json:"encoded,omitempty"`
	Track   json.RawMessage  `json:"track,omitempty"` // nested track object or encoded string
	Info    *model.TrackInfo `json:"info,omitempty"`
	Raw     string           `json:"-"` // the whole item was a bare string
}

// UnmarshalJSON accepts either an object or a bare encoded string.
func (r *RawTrack) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		*r = RawTrack{}
		return json.Unmarshal(data, &r.Raw)
	}
	type plain RawTrack
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = RawTrack(p)
	return nil
}

type nestedTrack struct {
	Encoded string           `json:"encoded"`
	Track   string           `json:"track"`
	Info    *model.TrackInfo `json:"info"`
}

// Normalize converts raw into a canonical Track requested by requesterID.
// It reports false when no encoded payload is present in any known shape.
// raw is never modified.
func Normalize(raw RawTrack, requesterID string) (model.Track, bool) {
	encoded, info := extract(raw)
	if encoded == "" {
		return model.Track{}, false
	}

	var out model.TrackInfo
	if info != nil {
		out = *info
	}
	out.Requester = requesterID
	return model.Track{Encoded: encoded, Info: out}, true
}

// extract tries the encoded field, then the nested track, then the bare string.
// An identifier alone is not a payload: the node can only play encoded tracks,
// so identifiers have to go through Resolve first.
func extract(raw RawTrack) (string, *model.TrackInfo) {
	if raw.Encoded != "" {
		return raw.Encoded, raw.Info
	}

	if len(raw.Track) > 0 {
		var s string
		if err := json.Unmarshal(raw.Track, &s); err == nil && s != "" {
			return s, raw.Info
		}
		var nested nestedTrack
		if err := json.Unmarshal(raw.Track, &nested); err == nil {
			info := raw.Info
			if info == nil {
				info = nested.Info
			}
			if nested.Encoded != "" {
				return nested.Encoded, info
			}
			if nested.Track != "" {
				return nested.Track, info
			}
		}
	}

	return raw.Raw, raw.Info
}

// NormalizeAll normalizes every raw track, dropping the ones without a payload.
func NormalizeAll(raws []RawTrack, requesterID string) []model.Track {
	tracks := make([]model.Track, 0, len(raws))
	for _, raw := range raws {
		if t, ok := Normalize(raw, requesterID); ok {
			tracks = append(tracks, t)
		}
	}
	return tracks
}

// RawFromLavalink wraps a node track as a RawTrack.
func RawFromLavalink(t lavalink.Track) RawTrack {
	info := t.Info
	return RawTrack{Encoded: t.Encoded, Info: &info}
}

// RawTracksFromResult returns the candidate tracks of a load result as raw tracks.
// A playlist with a selected track yields only that track when selectedOnly is set.
func RawTracksFromResult(res lavalink.LoadResult, selectedOnly bool) []RawTrack {
	tracks := lavalink.Tracks(res)
	if pl, ok := res.(lavalink.PlaylistResult); ok && selectedOnly &&
		pl.SelectedTrack >= 0 && pl.SelectedTrack < len(pl.Tracks) {
		tracks = pl.Tracks[pl.SelectedTrack : pl.SelectedTrack+1]
	}
	// Search results are candidates, only the best match is queued.
	if _, ok := res.(lavalink.SearchResult); ok && len(tracks) > 1 {
		tracks = tracks[:1]
	}

	raws := make([]RawTrack, 0, len(tracks))
	for _, t := range tracks {
		raws = append(raws, RawFromLavalink(t))
	}
	return raws
}
