package music

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/wendellddr/Bot-Spotify-sub000/core/lavalink"
	"github.com/wendellddr/Bot-Spotify-sub000/model"
)

func TestEnqueueSkipAndDrain(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())

	first := h.enqueue(t, "a", "b")
	if first.Info.Identifier != "a" {
		t.Errorf("Expected first track a, got %s", first.Info.Identifier)
	}
	if first.RequesterID() != "user-1" {
		t.Errorf("Expected requester user-1, got %s", first.RequesterID())
	}

	snap := h.m.GetQueue(testGuild)
	if snap == nil || snap.Current == nil {
		t.Fatalf("Expected a playing queue, got %+v", snap)
	}
	checkQueueState(t, snap)
	if snap.Current.Info.Title != "title-a" {
		t.Errorf("Expected current title-a, got %s", snap.Current.Info.Title)
	}
	if !equalIDs(trackIDs(snap.Tracks), "b") {
		t.Errorf("Expected tracks [b], got %v", trackIDs(snap.Tracks))
	}
	if h.player.currentVolume() != 80 {
		t.Errorf("Expected volume 80 applied on start, got %d", h.player.currentVolume())
	}

	skipped, err := h.m.Skip(context.Background(), testGuild)
	if err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	if skipped.Info.Identifier != "a" {
		t.Errorf("Expected skipped a, got %s", skipped.Info.Identifier)
	}
	h.flush(t)

	snap = h.m.GetQueue(testGuild)
	checkQueueState(t, snap)
	if snap == nil || snap.Current == nil || snap.Current.Info.Title != "title-b" {
		t.Fatalf("Expected current title-b after skip, got %+v", snap)
	}
	if len(snap.Tracks) != 0 {
		t.Errorf("Expected no upcoming tracks, got %v", trackIDs(snap.Tracks))
	}

	h.player.end(lavalink.EndFinished)
	h.flush(t)

	if snap := h.m.GetQueue(testGuild); snap != nil {
		t.Errorf("Expected queue destroyed, got %+v", snap)
	}
	if _, leaves := h.nodes.counts(); leaves != 1 {
		t.Errorf("Expected one voice leave, got %d", leaves)
	}
}

func TestConcurrentEnqueueStartsOnce(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())
	h.nodes.joinDelay = 20 * time.Millisecond

	var wg sync.WaitGroup
	start := make(chan struct{})
	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			<-start
			_, err := h.m.Enqueue(context.Background(), EnqueueRequest{
				GuildID:        testGuild,
				UserID:         "user-" + id,
				VoiceChannelID: "voice-1",
				Tracks:         []RawTrack{rawTrack(id)},
			})
			if err != nil {
				t.Errorf("Enqueue %s failed: %v", id, err)
			}
		}(id)
	}
	close(start)
	wg.Wait()

	joins, _ := h.nodes.counts()
	if joins != 1 {
		t.Errorf("Expected one voice join, got %d", joins)
	}
	if plays := h.player.playCount(); plays != 1 {
		t.Errorf("Expected exactly one play command, got %d", plays)
	}

	snap := h.m.GetQueue(testGuild)
	checkQueueState(t, snap)
	if snap.Current == nil || len(snap.Tracks) != 1 {
		t.Fatalf("Expected one current and one queued track, got %+v", snap)
	}
	ids := []string{snap.Current.Info.Identifier, snap.Tracks[0].Info.Identifier}
	sort.Strings(ids)
	if !equalIDs(ids, "a", "b") {
		t.Errorf("Expected both tracks present, got %v", ids)
	}
}

func TestLoopTrackReplaysFinishedTrack(t *testing.T) {
	settings := model.DefaultGuildSettings()
	settings.LoopMode = model.LoopTrack
	h := newHarness(settings)

	h.enqueue(t, "t")
	h.player.end(lavalink.EndFinished)
	h.flush(t)

	snap := h.m.GetQueue(testGuild)
	checkQueueState(t, snap)
	if snap == nil || snap.Current == nil || snap.Current.Info.Identifier != "t" {
		t.Fatalf("Expected t to play again, got %+v", snap)
	}
	if len(snap.Tracks) != 0 {
		t.Errorf("Expected empty tracks, got %v", trackIDs(snap.Tracks))
	}
	if plays := h.player.playCount(); plays != 2 {
		t.Errorf("Expected 2 play commands, got %d", plays)
	}
}

func TestLoopQueueRotates(t *testing.T) {
	settings := model.DefaultGuildSettings()
	settings.LoopMode = model.LoopQueue
	h := newHarness(settings)

	h.enqueue(t, "a", "b")
	h.player.end(lavalink.EndFinished)
	h.flush(t)

	snap := h.m.GetQueue(testGuild)
	checkQueueState(t, snap)
	if snap.Current == nil || snap.Current.Info.Identifier != "b" {
		t.Fatalf("Expected current b, got %+v", snap.Current)
	}
	if !equalIDs(trackIDs(snap.Tracks), "a") {
		t.Errorf("Expected tracks [a], got %v", trackIDs(snap.Tracks))
	}
}

func TestSkipIgnoresTrackLoop(t *testing.T) {
	settings := model.DefaultGuildSettings()
	settings.LoopMode = model.LoopTrack
	h := newHarness(settings)

	h.enqueue(t, "a", "b")
	if _, err := h.m.Skip(context.Background(), testGuild); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	h.flush(t)

	snap := h.m.GetQueue(testGuild)
	if snap.Current == nil || snap.Current.Info.Identifier != "b" {
		t.Fatalf("Expected current b, got %+v", snap.Current)
	}
	if len(snap.Tracks) != 0 {
		t.Errorf("Expected skipped track not reinserted, got %v", trackIDs(snap.Tracks))
	}
}

func TestReplacedEndIsIgnored(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())
	h.enqueue(t, "a", "b")

	h.player.end(lavalink.EndReplaced)
	h.flush(t)

	snap := h.m.GetQueue(testGuild)
	if snap.Current == nil || snap.Current.Info.Identifier != "a" {
		t.Errorf("Expected a still playing, got %+v", snap.Current)
	}
	if plays := h.player.playCount(); plays != 1 {
		t.Errorf("Expected no extra play command, got %d", plays)
	}
}

func TestStaleListenerIsIgnored(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())
	h.enqueue(t, "a", "b", "c")

	h.player.mu.Lock()
	stale := h.player.listener
	h.player.mu.Unlock()

	if _, err := h.m.Skip(context.Background(), testGuild); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	h.flush(t)

	// A late event for track a must not advance past b.
	stale.OnEnd(lavalink.Track{}, lavalink.EndFinished)
	h.flush(t)

	snap := h.m.GetQueue(testGuild)
	if snap.Current == nil || snap.Current.Info.Identifier != "b" {
		t.Fatalf("Expected current b, got %+v", snap.Current)
	}
	if !equalIDs(trackIDs(snap.Tracks), "c") {
		t.Errorf("Expected tracks [c], got %v", trackIDs(snap.Tracks))
	}
}

func TestExceptionSkipsTrack(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())
	h.enqueue(t, "a", "b")

	h.player.exception("decode failed")
	h.flush(t)

	snap := h.m.GetQueue(testGuild)
	checkQueueState(t, snap)
	if snap.Current == nil || snap.Current.Info.Identifier != "b" {
		t.Fatalf("Expected current b after exception, got %+v", snap.Current)
	}
}

func TestPlayFailureAdvancesOnce(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())
	h.player.playErrs["enc-bad"] = errors.New("boom")

	h.enqueue(t, "bad", "good")

	snap := h.m.GetQueue(testGuild)
	checkQueueState(t, snap)
	if snap.Current == nil || snap.Current.Info.Identifier != "good" {
		t.Fatalf("Expected good to play after failure, got %+v", snap.Current)
	}
	if plays := h.player.playCount(); plays != 2 {
		t.Errorf("Expected 2 play attempts, got %d", plays)
	}
}

func TestAutoQueueSkipsRecentTracks(t *testing.T) {
	settings := model.DefaultGuildSettings()
	settings.AutoQueue = true
	h := newHarness(settings)

	candidate := func(id string) lavalink.Track {
		return lavalink.Track{Encoded: "enc-" + id, Info: model.TrackInfo{Identifier: id, Title: "title-" + id}}
	}
	h.nodes.result = lavalink.SearchResult{Tracks: []lavalink.Track{candidate("x"), candidate("y"), candidate("z")}}

	h.enqueue(t, "x", "t")
	if _, err := h.m.Skip(context.Background(), testGuild); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	h.flush(t)
	if len(h.nodes.resolved) != 0 {
		t.Errorf("Expected no auto-queue on skip, got %v", h.nodes.resolved)
	}

	h.player.end(lavalink.EndFinished)
	h.flush(t)

	snap := h.m.GetQueue(testGuild)
	if snap == nil || snap.Current == nil || snap.Current.Info.Identifier != "y" {
		t.Fatalf("Expected auto-queued y, got %+v", snap)
	}
	if snap.Current.RequesterID() != "user-1" {
		t.Errorf("Expected requester carried over, got %s", snap.Current.RequesterID())
	}
	want := "https://www.youtube.com/watch?v=t&list=RDt"
	if len(h.nodes.resolved) != 1 || h.nodes.resolved[0] != want {
		t.Errorf("Expected resolve %s, got %v", want, h.nodes.resolved)
	}
}

func TestAutoQueueNoCandidateDestroys(t *testing.T) {
	settings := model.DefaultGuildSettings()
	settings.AutoQueue = true
	h := newHarness(settings)
	h.nodes.result = lavalink.EmptyResult{}

	h.enqueue(t, "a")
	h.player.end(lavalink.EndFinished)
	h.flush(t)

	if snap := h.m.GetQueue(testGuild); snap != nil {
		t.Errorf("Expected queue destroyed, got %+v", snap)
	}
}

func TestTwentyFourSevenStaysInVoice(t *testing.T) {
	settings := model.DefaultGuildSettings()
	settings.TwentyFourSeven = true
	h := newHarness(settings)

	h.enqueue(t, "a")
	h.player.end(lavalink.EndFinished)
	h.flush(t)

	if h.m.GetQueue(testGuild) != nil {
		t.Error("Expected queue destroyed")
	}
	if _, leaves := h.nodes.counts(); leaves != 0 {
		t.Errorf("Expected to stay in voice, got %d leaves", leaves)
	}
}

func TestStop(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())

	if err := h.m.Stop(context.Background(), testGuild); err != nil {
		t.Errorf("Expected stop without queue to be a no-op, got %v", err)
	}
	if h.m.GetQueue(testGuild) != nil {
		t.Error("Expected no queue")
	}

	h.enqueue(t, "a", "b")
	if err := h.m.Stop(context.Background(), testGuild); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	h.flush(t)

	if h.m.GetQueue(testGuild) != nil {
		t.Error("Expected queue destroyed after stop")
	}
	if _, leaves := h.nodes.counts(); leaves != 1 {
		t.Errorf("Expected one leave, got %d", leaves)
	}
	if plays := h.player.playCount(); plays != 1 {
		t.Errorf("Expected the stop end event not to start b, got %d plays", plays)
	}
}

func TestEnqueueValidation(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())
	ctx := context.Background()

	_, err := h.m.Enqueue(ctx, EnqueueRequest{GuildID: testGuild, UserID: "u", VoiceChannelID: "v"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest, got %v", err)
	}

	_, err = h.m.Enqueue(ctx, EnqueueRequest{GuildID: testGuild, UserID: "u", Tracks: []RawTrack{rawTrack("a")}})
	if !errors.Is(err, ErrNotInVoiceChannel) {
		t.Errorf("Expected ErrNotInVoiceChannel, got %v", err)
	}

	_, err = h.m.Enqueue(ctx, EnqueueRequest{GuildID: testGuild, UserID: "u", VoiceChannelID: "v", Tracks: []RawTrack{{}}})
	if !errors.Is(err, ErrNoValidTracks) {
		t.Errorf("Expected ErrNoValidTracks, got %v", err)
	}

	if joins, _ := h.nodes.counts(); joins != 0 {
		t.Errorf("Expected no voice join for rejected requests, got %d", joins)
	}
	if h.m.GetQueue(testGuild) != nil {
		t.Error("Expected no queue after rejected requests")
	}
}

func TestEnqueueNoNode(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())
	h.nodes.joinErr = lavalink.ErrNoNodeAvailable

	_, err := h.m.Enqueue(context.Background(), EnqueueRequest{
		GuildID: testGuild, UserID: "u", VoiceChannelID: "v", Tracks: []RawTrack{rawTrack("a")},
	})
	if !errors.Is(err, ErrNoNodeAvailable) {
		t.Errorf("Expected ErrNoNodeAvailable, got %v", err)
	}
	if h.m.GetQueue(testGuild) != nil {
		t.Error("Expected no queue when no node is available")
	}
}

func TestSettingsFallbackOnError(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())
	h.settings.err = errors.New("db down")

	h.enqueue(t, "a")
	snap := h.m.GetQueue(testGuild)
	if snap.Volume != 80 || snap.LoopMode != model.LoopOff || !snap.AutoLeave {
		t.Errorf("Expected hardcoded defaults, got volume=%d loop=%s autoLeave=%v", snap.Volume, snap.LoopMode, snap.AutoLeave)
	}
}

func TestQueueOperationsRequireQueue(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())
	ctx := context.Background()

	if err := h.m.Pause(ctx, testGuild); !errors.Is(err, ErrQueueNotFound) {
		t.Errorf("Pause: expected ErrQueueNotFound, got %v", err)
	}
	if _, err := h.m.Skip(ctx, testGuild); !errors.Is(err, ErrQueueNotFound) {
		t.Errorf("Skip: expected ErrQueueNotFound, got %v", err)
	}
	if _, err := h.m.Remove(ctx, testGuild, 1); !errors.Is(err, ErrQueueNotFound) {
		t.Errorf("Remove: expected ErrQueueNotFound, got %v", err)
	}
	if err := h.m.Shuffle(ctx, testGuild); !errors.Is(err, ErrQueueNotFound) {
		t.Errorf("Shuffle: expected ErrQueueNotFound, got %v", err)
	}
	if _, err := h.m.NowPlaying(ctx, testGuild); !errors.Is(err, ErrQueueNotFound) {
		t.Errorf("NowPlaying: expected ErrQueueNotFound, got %v", err)
	}
}

func TestRemoveMoveSkipTo(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())
	ctx := context.Background()
	h.enqueue(t, "a", "b", "c", "d", "e")

	moved, err := h.m.Move(ctx, testGuild, 3, 1)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if moved.Info.Identifier != "d" {
		t.Errorf("Expected moved d, got %s", moved.Info.Identifier)
	}
	if ids := trackIDs(h.m.GetQueue(testGuild).Tracks); !equalIDs(ids, "d", "b", "c", "e") {
		t.Errorf("Expected [d b c e], got %v", ids)
	}

	removed, err := h.m.Remove(ctx, testGuild, 2)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if removed.Info.Identifier != "b" {
		t.Errorf("Expected removed b, got %s", removed.Info.Identifier)
	}
	snap := h.m.GetQueue(testGuild)
	if snap.Current.Info.Identifier != "a" {
		t.Errorf("Expected remove not to touch current, got %s", snap.Current.Info.Identifier)
	}

	_, err = h.m.Remove(ctx, testGuild, 9)
	var posErr *PositionError
	if !errors.As(err, &posErr) || !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("Expected PositionError, got %v", err)
	}
	if posErr.Max != 3 {
		t.Errorf("Expected max 3, got %d", posErr.Max)
	}

	target, err := h.m.SkipTo(ctx, testGuild, 2)
	if err != nil {
		t.Fatalf("SkipTo failed: %v", err)
	}
	if target.Info.Identifier != "c" {
		t.Errorf("Expected skip target c, got %s", target.Info.Identifier)
	}
	h.flush(t)

	snap = h.m.GetQueue(testGuild)
	if snap.Current == nil || snap.Current.Info.Identifier != "c" {
		t.Fatalf("Expected current c, got %+v", snap.Current)
	}
	if !equalIDs(trackIDs(snap.Tracks), "e") {
		t.Errorf("Expected tracks [e], got %v", trackIDs(snap.Tracks))
	}

	if _, err := h.m.SkipTo(ctx, testGuild, 0); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("Expected ErrInvalidPosition, got %v", err)
	}
}

func TestShuffle(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())
	h.m = NewManager(h.nodes, h.settings, h.notifier, Options{Rand: rand.New(rand.NewPCG(1, 2))})
	ctx := context.Background()

	h.enqueue(t, "a", "b")
	if err := h.m.Shuffle(ctx, testGuild); !errors.Is(err, ErrNothingToShuffle) {
		t.Errorf("Expected ErrNothingToShuffle, got %v", err)
	}

	h.enqueue(t, "c", "d", "e")
	if err := h.m.Shuffle(ctx, testGuild); err != nil {
		t.Fatalf("Shuffle failed: %v", err)
	}
	ids := trackIDs(h.m.GetQueue(testGuild).Tracks)
	sort.Strings(ids)
	if !equalIDs(ids, "b", "c", "d", "e") {
		t.Errorf("Expected a permutation of [b c d e], got %v", ids)
	}
}

func TestPauseResumeSeek(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())
	ctx := context.Background()
	h.enqueue(t, "a")

	if err := h.m.Pause(ctx, testGuild); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if !h.m.GetQueue(testGuild).Paused {
		t.Error("Expected paused snapshot")
	}
	if err := h.m.Resume(ctx, testGuild); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if h.m.GetQueue(testGuild).Paused {
		t.Error("Expected resumed snapshot")
	}

	if err := h.m.Seek(ctx, testGuild, 30*time.Second); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if pos, _ := h.m.Position(ctx, testGuild); pos != 30*time.Second {
		t.Errorf("Expected position 30s, got %s", pos)
	}
	if err := h.m.Seek(ctx, testGuild, 10*time.Minute); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest for seek past end, got %v", err)
	}
}

func TestSetVolume(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())
	ctx := context.Background()

	applied, err := h.m.SetVolume(ctx, testGuild, 50)
	if err != nil {
		t.Fatalf("SetVolume failed: %v", err)
	}
	if applied {
		t.Error("Expected deferred volume without a queue")
	}
	if len(h.settings.volumes) != 1 || h.settings.volumes[0] != 50 {
		t.Errorf("Expected volume 50 persisted, got %v", h.settings.volumes)
	}

	h.enqueue(t, "a")
	if h.player.currentVolume() != 50 {
		t.Errorf("Expected persisted volume applied on start, got %d", h.player.currentVolume())
	}

	applied, err = h.m.SetVolume(ctx, testGuild, 30)
	if err != nil || !applied {
		t.Fatalf("Expected live volume change, got applied=%v err=%v", applied, err)
	}
	if h.player.currentVolume() != 30 || h.m.GetQueue(testGuild).Volume != 30 {
		t.Errorf("Expected volume 30, got player=%d queue=%d", h.player.currentVolume(), h.m.GetQueue(testGuild).Volume)
	}

	if _, err := h.m.SetVolume(ctx, testGuild, 101); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest, got %v", err)
	}
	if h.m.GetQueue(testGuild).Volume != 30 {
		t.Error("Expected rejected volume to leave state unchanged")
	}
}

func TestSetLoopMode(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())
	ctx := context.Background()
	h.enqueue(t, "a")

	if err := h.m.SetLoopMode(ctx, testGuild, model.LoopQueue); err != nil {
		t.Fatalf("SetLoopMode failed: %v", err)
	}
	if h.m.GetQueue(testGuild).LoopMode != model.LoopQueue {
		t.Error("Expected live loop mode queue")
	}
	if len(h.settings.loops) != 1 {
		t.Errorf("Expected loop mode persisted, got %v", h.settings.loops)
	}

	next, err := h.m.CycleLoopMode(ctx, testGuild)
	if err != nil || next != model.LoopOff {
		t.Errorf("Expected cycle to off, got %s (%v)", next, err)
	}

	if err := h.m.SetLoopMode(ctx, testGuild, "sometimes"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest, got %v", err)
	}
}

func TestClear(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())
	ctx := context.Background()
	h.enqueue(t, "a", "b", "c")

	n, err := h.m.Clear(ctx, testGuild)
	if err != nil || n != 2 {
		t.Fatalf("Expected 2 cleared, got %d (%v)", n, err)
	}
	snap := h.m.GetQueue(testGuild)
	if snap.Current == nil || len(snap.Tracks) != 0 {
		t.Errorf("Expected current kept and tracks empty, got %+v", snap)
	}
	if _, err := h.m.Clear(ctx, testGuild); !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("Expected ErrQueueEmpty, got %v", err)
	}
}

func TestNodeClosedDestroysQueues(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())
	h.enqueue(t, "a")

	h.m.HandleNodeClosed("other-node")
	h.flush(t)
	if h.m.GetQueue(testGuild) == nil {
		t.Fatal("Expected queue on a different node to survive")
	}

	h.m.HandleNodeClosed("node-1")
	h.flush(t)
	if h.m.GetQueue(testGuild) != nil {
		t.Error("Expected queue destroyed when its node closed")
	}
}

func TestNowPlayingMessageReplaced(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())
	h.enqueue(t, "a", "b")

	waitFor(t, "first now-playing message", func() bool { return h.notifier.sentCount() == 1 })

	np, err := h.m.NowPlaying(context.Background(), testGuild)
	if err != nil {
		t.Fatalf("NowPlaying failed: %v", err)
	}
	if np.Title != "title-a" || np.QueueLength != 1 || len(np.Controls) != 5 {
		t.Errorf("Unexpected now-playing data: %+v", np)
	}

	if _, err := h.m.Skip(context.Background(), testGuild); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	waitFor(t, "second now-playing message", func() bool { return h.notifier.sentCount() == 2 })
	waitFor(t, "first message deleted", func() bool { return h.notifier.wasDeleted("msg-1") })
}

type recordingObserver struct {
	mu    sync.Mutex
	snaps []*Snapshot
}

func (o *recordingObserver) QueueChanged(guildID string, snap *Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snaps = append(o.snaps, snap)
}

func TestObserverSeesDestroy(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())
	obs := &recordingObserver{}
	h.m.Subscribe(obs)

	h.enqueue(t, "a")
	if err := h.m.Stop(context.Background(), testGuild); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.snaps) < 2 {
		t.Fatalf("Expected at least 2 notifications, got %d", len(obs.snaps))
	}
	if obs.snaps[0] == nil || obs.snaps[0].Current == nil {
		t.Error("Expected first notification to carry the playing queue")
	}
	if obs.snaps[len(obs.snaps)-1] != nil {
		t.Error("Expected last notification to be nil after stop")
	}
}

func TestIdleGuildsAreReleased(t *testing.T) {
	h := newHarness(model.DefaultGuildSettings())
	ctx := context.Background()

	guildCount := func() int {
		h.m.mu.Lock()
		defer h.m.mu.Unlock()
		return len(h.m.guilds)
	}

	for _, id := range []string{"ghost-1", "ghost-2", "ghost-3"} {
		if err := h.m.Pause(ctx, id); !errors.Is(err, ErrQueueNotFound) {
			t.Errorf("Expected ErrQueueNotFound for %s, got %v", id, err)
		}
	}
	waitFor(t, "unknown guilds to be released", func() bool { return guildCount() == 0 })

	h.enqueue(t, "a")
	if guildCount() != 1 {
		t.Errorf("Expected the playing guild to stay registered, got %d guilds", guildCount())
	}

	if err := h.m.Stop(ctx, testGuild); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	waitFor(t, "stopped guild to be released", func() bool { return guildCount() == 0 })
	if h.m.GetQueue(testGuild) != nil {
		t.Error("Expected no queue after stop")
	}

	// A released guild starts a fresh executor on the next command.
	h.enqueue(t, "b")
	snap := h.m.GetQueue(testGuild)
	if snap == nil || snap.Current == nil || snap.Current.Info.Identifier != "b" {
		t.Errorf("Expected b to play after re-enqueue, got %+v", snap)
	}
}
