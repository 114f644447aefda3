package music

import (
	"context"
	"time"

	"github.com/wendellddr/Bot-Spotify-sub000/core/lavalink"
	"github.com/wendellddr/Bot-Spotify-sub000/logger"
	"github.com/wendellddr/Bot-Spotify-sub000/model"
)

const notifyTimeout = 10 * time.Second

// advance pops the next track and starts it, or destroys the queue when
// nothing is left. It must run on the guild's executor. A failed start drops
// that track and tries once more before giving up with the queue idle.
func (m *Manager) advance(ctx context.Context, g *guild) {
	for attempt := 0; attempt < 2; attempt++ {
		q := g.queue
		if q == nil {
			return
		}
		if len(q.tracks) == 0 {
			m.destroy(ctx, g, false)
			return
		}

		next := q.tracks[0]
		q.tracks = q.tracks[1:]
		q.current = &next
		q.playing = true
		q.paused = false
		q.startedAt = m.now()
		q.recent.Add(next.Info.Identifier)

		// Replace the listener before issuing play so the previous track's
		// events can no longer reach this one.
		q.generation++
		q.player.SetListener(m.listenerFor(g, q.generation))

		if err := q.player.PlayTrack(ctx, next.Encoded); err != nil {
			logger.Error("play track failed",
				logger.Guild(g.id),
				logger.String("title", next.Info.Title),
				logger.ErrorField(err))
			q.current = nil
			q.playing = false
			continue
		}
		if err := q.player.SetVolume(ctx, q.volume); err != nil {
			logger.Warn("apply volume failed", logger.Guild(g.id), logger.ErrorField(err))
		}

		logger.Info("track started",
			logger.Guild(g.id),
			logger.String("title", next.Info.Title),
			logger.String("requester", next.RequesterID()),
			logger.Int("remaining", len(q.tracks)))

		m.announce(g, q, next)
		return
	}
}

func (m *Manager) listenerFor(g *guild, generation uint64) lavalink.Listener {
	return lavalink.Listener{
		OnEnd: func(_ lavalink.Track, reason lavalink.EndReason) {
			m.post(g, func() { m.onEnd(g, generation, reason) })
		},
		OnException: func(_ lavalink.Track, exc lavalink.Exception) {
			m.post(g, func() { m.onException(g, generation, exc) })
		},
	}
}

// onEnd applies the loop mode and auto-queue, then advances.
func (m *Manager) onEnd(g *guild, generation uint64, reason lavalink.EndReason) {
	q := g.queue
	if q == nil || q.generation != generation || q.current == nil {
		return
	}
	if reason == lavalink.EndReplaced {
		return
	}

	ctx := context.Background()
	finished := *q.current

	switch reason {
	case lavalink.EndFinished:
		switch q.loopMode {
		case model.LoopTrack:
			q.tracks = append([]model.Track{finished}, q.tracks...)
		case model.LoopQueue:
			q.tracks = append(q.tracks, finished)
		}
		// Only recommend once nothing is left to play, even with loop off and
		// tracks still queued.
		if q.autoQueue && len(q.tracks) == 0 {
			m.autoQueue(ctx, q, finished)
		}
	case lavalink.EndStopped:
		// Skip or stop. Unlike other non-finished reasons, track loop does not
		// reinsert here, otherwise skip could never leave a looped track.
	default:
		if q.loopMode == model.LoopTrack {
			q.tracks = append([]model.Track{finished}, q.tracks...)
		}
	}

	logger.Debug("track ended",
		logger.Guild(g.id),
		logger.String("title", finished.Info.Title),
		logger.String("reason", string(reason)))

	q.current = nil
	q.playing = false
	m.advance(ctx, g)
}

// onException skips past a broken track.
func (m *Manager) onException(g *guild, generation uint64, exc lavalink.Exception) {
	q := g.queue
	if q == nil || q.generation != generation || q.current == nil {
		return
	}

	logger.Warn("track exception",
		logger.Guild(g.id),
		logger.String("title", q.current.Info.Title),
		logger.String("severity", exc.Severity),
		logger.String("message", exc.Message),
		logger.String("cause", exc.Cause))

	q.current = nil
	q.playing = false
	m.advance(context.Background(), g)
}

// announce replaces the now-playing message. Delivery is detached; the new
// message ID is handed back to the executor once sent.
func (m *Manager) announce(g *guild, q *guildQueue, track model.Track) {
	if m.notifier == nil || q.textChannelID == "" {
		return
	}

	channelID := q.textChannelID
	previous := q.nowPlayingMessageID
	q.nowPlayingMessageID = ""
	generation := q.generation
	np := renderNowPlaying(track, q)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if previous != "" {
			if err := m.notifier.DeleteMessage(ctx, channelID, previous); err != nil {
				logger.Warn("delete now-playing message failed", logger.Guild(g.id), logger.ErrorField(err))
			}
		}

		messageID, err := m.notifier.SendNowPlaying(ctx, channelID, np)
		if err != nil {
			logger.Warn("send now-playing message failed", logger.Guild(g.id), logger.ErrorField(err))
			return
		}

		posted := m.post(g, func() {
			if g.queue == q && q.generation == generation {
				q.nowPlayingMessageID = messageID
				return
			}
			// The track already changed; this message is stale.
			m.deleteMessageDetached(channelID, messageID)
		})
		if !posted {
			m.deleteMessageDetached(channelID, messageID)
		}
	}()
}

func (m *Manager) deleteMessageDetached(channelID, messageID string) {
	if m.notifier == nil || channelID == "" || messageID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := m.notifier.DeleteMessage(ctx, channelID, messageID); err != nil {
			logger.Warn("delete now-playing message failed",
				logger.String("channel", channelID),
				logger.ErrorField(err))
		}
	}()
}
