package music

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/wendellddr/Bot-Spotify-sub000/core/lavalink"
	"github.com/wendellddr/Bot-Spotify-sub000/model"
)

func TestNormalizeShapes(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		encoded string
		title   string
	}{
		{"encoded field", `{"encoded":"E1","info":{"title":"one"}}`, "E1", "one"},
		{"nested object", `{"track":{"encoded":"E2","info":{"title":"two"}}}`, "E2", "two"},
		{"nested string", `{"track":"E3","info":{"title":"three"}}`, "E3", "three"},
		{"bare string", `"E4"`, "E4", ""},
		{"encoded wins over nested", `{"encoded":"E5","track":"other"}`, "E5", ""},
	}

	for _, c := range cases {
		var raw RawTrack
		if err := json.Unmarshal([]byte(c.body), &raw); err != nil {
			t.Fatalf("%s: unmarshal failed: %v", c.name, err)
		}
		track, ok := Normalize(raw, "u1")
		if !ok {
			t.Errorf("%s: expected a track", c.name)
			continue
		}
		if track.Encoded != c.encoded {
			t.Errorf("%s: expected encoded %s, got %s", c.name, c.encoded, track.Encoded)
		}
		if track.Info.Title != c.title {
			t.Errorf("%s: expected title %q, got %q", c.name, c.title, track.Info.Title)
		}
		if track.RequesterID() != "u1" {
			t.Errorf("%s: expected requester u1, got %s", c.name, track.RequesterID())
		}
	}
}

func TestNormalizeRejectsMissingPayload(t *testing.T) {
	for _, body := range []string{`{}`, `{"info":{"title":"x"}}`, `{"track":{"info":{}}}`, `""`} {
		var raw RawTrack
		if err := json.Unmarshal([]byte(body), &raw); err != nil {
			t.Fatalf("unmarshal %s failed: %v", body, err)
		}
		if _, ok := Normalize(raw, "u1"); ok {
			t.Errorf("Expected %s to be rejected", body)
		}
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	info := &model.TrackInfo{Title: "song", Requester: "original"}
	raw := RawTrack{Encoded: "E", Info: info}

	track, ok := Normalize(raw, "u2")
	if !ok {
		t.Fatal("Expected a track")
	}
	if info.Requester != "original" {
		t.Errorf("Expected caller info untouched, got requester %s", info.Requester)
	}
	if track.Info.Requester != "u2" {
		t.Errorf("Expected requester u2, got %s", track.Info.Requester)
	}
}

func TestNormalizeIdentifierIsNotAPayload(t *testing.T) {
	for _, body := range []string{
		`{"info":{"identifier":"dQw4w9WgXcQ","title":"x"}}`,
		`{"identifier":"dQw4w9WgXcQ"}`,
		`{"track":{"identifier":"dQw4w9WgXcQ"}}`,
	} {
		var raw RawTrack
		if err := json.Unmarshal([]byte(body), &raw); err != nil {
			t.Fatalf("unmarshal %s failed: %v", body, err)
		}
		if _, ok := Normalize(raw, "u1"); ok {
			t.Errorf("Expected %s to be rejected", body)
		}
	}

	// The identifier still travels with a track that has a payload.
	var raw RawTrack
	if err := json.Unmarshal([]byte(`{"track":"E9","info":{"identifier":"dQw4w9WgXcQ"}}`), &raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	track, ok := Normalize(raw, "u1")
	if !ok || track.Encoded != "E9" || track.Info.Identifier != "dQw4w9WgXcQ" {
		t.Errorf("Expected encoded E9 with identifier kept, got %+v (ok=%v)", track, ok)
	}
}

func TestRawTracksFromResult(t *testing.T) {
	mk := func(n int) []lavalink.Track {
		out := make([]lavalink.Track, n)
		for i := range out {
			out[i] = lavalink.Track{Encoded: fmt.Sprintf("E%d", i), Info: model.TrackInfo{Title: fmt.Sprintf("t%d", i)}}
		}
		return out
	}

	if raws := RawTracksFromResult(lavalink.SearchResult{Tracks: mk(3)}, false); len(raws) != 1 || raws[0].Encoded != "E0" {
		t.Errorf("Expected only the best search match, got %+v", raws)
	}
	if raws := RawTracksFromResult(lavalink.PlaylistResult{Tracks: mk(3), SelectedTrack: -1}, true); len(raws) != 3 {
		t.Errorf("Expected the whole playlist, got %d", len(raws))
	}
	if raws := RawTracksFromResult(lavalink.PlaylistResult{Tracks: mk(3), SelectedTrack: 2}, true); len(raws) != 1 || raws[0].Encoded != "E2" {
		t.Errorf("Expected the selected track, got %+v", raws)
	}
	if raws := RawTracksFromResult(lavalink.EmptyResult{}, false); len(raws) != 0 {
		t.Errorf("Expected nothing from an empty result, got %+v", raws)
	}
}
