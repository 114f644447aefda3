package music

import (
	"context"
	"net/url"
	"strings"

	"github.com/wendellddr/Bot-Spotify-sub000/core/lavalink"
	"github.com/wendellddr/Bot-Spotify-sub000/logger"
	"github.com/wendellddr/Bot-Spotify-sub000/model"
)

// Recommender builds an identifier that resolves to tracks related to track.
type Recommender interface {
	RecommendRelated(track model.Track) (identifier string, ok bool)
}

// RecommenderFunc adapts a function to Recommender.
type RecommenderFunc func(track model.Track) (string, bool)

func (f RecommenderFunc) RecommendRelated(track model.Track) (string, bool) {
	return f(track)
}

// RadioRecommender uses YouTube's radio mix for YouTube tracks and a text
// search on author and title for everything else.
type RadioRecommender struct{}

func (RadioRecommender) RecommendRelated(track model.Track) (string, bool) {
	info := track.Info
	if isYouTube(info.SourceName) && info.Identifier != "" {
		id := url.QueryEscape(info.Identifier)
		return "https://www.youtube.com/watch?v=" + id + "&list=RD" + id, true
	}

	terms := strings.TrimSpace(strings.TrimSpace(info.Author) + " " + strings.TrimSpace(info.Title))
	if terms == "" {
		return "", false
	}
	return "ytsearch:" + terms, true
}

func isYouTube(source string) bool {
	return source == "youtube" || source == "youtubemusic"
}

// autoQueue appends one related track that was not played recently. Failures
// are logged and leave the queue untouched.
func (m *Manager) autoQueue(ctx context.Context, q *guildQueue, finished model.Track) {
	identifier, ok := m.recommender.RecommendRelated(finished)
	if !ok {
		return
	}

	res, err := m.nodes.Resolve(ctx, identifier)
	if err != nil {
		logger.Warn("auto-queue resolve failed", logger.Guild(q.guildID), logger.ErrorField(err))
		return
	}
	if e, isErr := res.(lavalink.ErrorResult); isErr {
		logger.Warn("auto-queue load failed", logger.Guild(q.guildID), logger.ErrorField(e))
		return
	}

	pick, ok := pickUnplayed(lavalink.Tracks(res), q.recent, finished.Info.Identifier)
	if !ok {
		logger.Debug("auto-queue found no fresh candidate", logger.Guild(q.guildID))
		return
	}

	track, ok := Normalize(RawFromLavalink(pick), finished.RequesterID())
	if !ok {
		return
	}
	q.tracks = append(q.tracks, track)
	q.recent.Add(track.Info.Identifier)

	logger.Info("auto-queued track",
		logger.Guild(q.guildID),
		logger.String("title", track.Info.Title))
}

// pickUnplayed returns the first candidate not in recent and not the
// finished track itself.
func pickUnplayed(candidates []lavalink.Track, recent *recentSet, finishedID string) (lavalink.Track, bool) {
	for _, c := range candidates {
		id := c.Info.Identifier
		if id == "" || id == finishedID || recent.Contains(id) {
			continue
		}
		return c, true
	}
	return lavalink.Track{}, false
}
