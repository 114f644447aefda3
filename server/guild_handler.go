package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wendellddr/Bot-Spotify-sub000/core/lavalink"
	"github.com/wendellddr/Bot-Spotify-sub000/core/music"
	"github.com/wendellddr/Bot-Spotify-sub000/core/search"
	"github.com/wendellddr/Bot-Spotify-sub000/logger"
	"github.com/wendellddr/Bot-Spotify-sub000/model"
)

const maxBodyBytes = 4096

// Engine is the part of the queue engine the dashboard drives.
type Engine interface {
	GetQueue(guildID string) *music.Snapshot
	Position(ctx context.Context, guildID string) (time.Duration, error)
	Enqueue(ctx context.Context, req music.EnqueueRequest) (model.Track, error)
	Stop(ctx context.Context, guildID string) error
	Pause(ctx context.Context, guildID string) error
	Resume(ctx context.Context, guildID string) error
	Skip(ctx context.Context, guildID string) (model.Track, error)
	SkipTo(ctx context.Context, guildID string, pos int) (model.Track, error)
	Remove(ctx context.Context, guildID string, pos int) (model.Track, error)
	Move(ctx context.Context, guildID string, from, to int) (model.Track, error)
	Shuffle(ctx context.Context, guildID string) error
	Clear(ctx context.Context, guildID string) (int, error)
	Seek(ctx context.Context, guildID string, position time.Duration) error
	SetVolume(ctx context.Context, guildID string, volume int) (bool, error)
	SetLoopMode(ctx context.Context, guildID string, mode model.LoopMode) error
}

// Resolver turns a dashboard query into playable tracks.
type Resolver interface {
	Resolve(ctx context.Context, query string) (*search.Result, error)
}

// VoiceLocator reports which voice channel a user is in; "" means none.
type VoiceLocator interface {
	VoiceChannel(guildID, userID string) (string, error)
}

// ViewerLister lists dashboard users watching a guild.
type ViewerLister interface {
	Viewers(ctx context.Context, guildID string) ([]string, error)
}

// GuildHandler serves the per-guild queue API.
type GuildHandler struct {
	engine   Engine
	resolver Resolver
	voice    VoiceLocator
	viewers  ViewerLister
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewGuildHandler creates a GuildHandler. viewers may be nil.
func NewGuildHandler(engine Engine, resolver Resolver, voice VoiceLocator, viewers ViewerLister, hub *Hub) *GuildHandler {
	return &GuildHandler{
		engine:   engine,
		resolver: resolver,
		voice:    voice,
		viewers:  viewers,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ========== Request / response types ==========

// QueueResponse is a snapshot plus the live playback position.
type QueueResponse struct {
	*music.Snapshot
	PositionMs int64 `json:"positionMs"`
}

// TrackResponse describes the track an operation acted on.
type TrackResponse struct {
	Track model.Track `json:"track"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

type playRequest struct {
	Query         string `json:"query"`
	TextChannelID string `json:"textChannelId"`
}

type playResponse struct {
	Track        model.Track `json:"track"`
	Queued       int         `json:"queued"`
	PlaylistName string      `json:"playlistName,omitempty"`
}

type positionRequest struct {
	Position int `json:"position"`
}

type moveRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type seekRequest struct {
	PositionMs int64 `json:"positionMs"`
}

type volumeRequest struct {
	Volume *int `json:"volume"`
}

type volumeResponse struct {
	Volume  int  `json:"volume"`
	Applied bool `json:"applied"`
}

type loopRequest struct {
	Mode string `json:"mode"`
}

// ========== Handlers ==========

// GetQueueHandler returns the guild's queue snapshot.
func (h *GuildHandler) GetQueueHandler(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guild_id"]
	snap := h.engine.GetQueue(guildID)
	if snap == nil {
		h.writeEngineError(w, guildID, music.ErrQueueNotFound)
		return
	}

	resp := QueueResponse{Snapshot: snap}
	if pos, err := h.engine.Position(r.Context(), guildID); err == nil {
		resp.PositionMs = pos.Milliseconds()
	}
	writeJSON(w, http.StatusOK, resp)
}

// PlayHandler resolves a query and queues the result for the calling user.
func (h *GuildHandler) PlayHandler(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guild_id"]
	userID, _ := UserIDFromContext(r.Context())

	var req playRequest
	if !decodeBody(w, r, &req) {
		return
	}

	voiceChannelID, err := h.voice.VoiceChannel(guildID, userID)
	if err != nil {
		logger.Warn("failed to look up voice state", logger.Guild(guildID), logger.ErrorField(err))
	}
	if voiceChannelID == "" {
		h.writeEngineError(w, guildID, music.ErrNotInVoiceChannel)
		return
	}

	textChannelID := req.TextChannelID
	if textChannelID == "" {
		if snap := h.engine.GetQueue(guildID); snap != nil {
			textChannelID = snap.TextChannelID
		}
	}

	res, err := h.resolver.Resolve(r.Context(), req.Query)
	if err != nil {
		h.writeEngineError(w, guildID, err)
		return
	}

	first, err := h.engine.Enqueue(r.Context(), music.EnqueueRequest{
		GuildID:        guildID,
		UserID:         userID,
		VoiceChannelID: voiceChannelID,
		TextChannelID:  textChannelID,
		Tracks:         res.Tracks,
	})
	if err != nil {
		h.writeEngineError(w, guildID, err)
		return
	}

	writeJSON(w, http.StatusOK, playResponse{
		Track:        first,
		Queued:       len(res.Tracks),
		PlaylistName: res.PlaylistName,
	})
}

func (h *GuildHandler) SkipHandler(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guild_id"]
	t, err := h.engine.Skip(r.Context(), guildID)
	if err != nil {
		h.writeEngineError(w, guildID, err)
		return
	}
	writeJSON(w, http.StatusOK, TrackResponse{Track: t})
}

func (h *GuildHandler) SkipToHandler(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guild_id"]
	var req positionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := h.engine.SkipTo(r.Context(), guildID, req.Position)
	if err != nil {
		h.writeEngineError(w, guildID, err)
		return
	}
	writeJSON(w, http.StatusOK, TrackResponse{Track: t})
}

func (h *GuildHandler) PauseHandler(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.engine.Pause)
}

func (h *GuildHandler) ResumeHandler(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.engine.Resume)
}

func (h *GuildHandler) ShuffleHandler(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.engine.Shuffle)
}

// StopHandler destroys the queue. Stopping a guild without a queue is a 404.
func (h *GuildHandler) StopHandler(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guild_id"]
	if h.engine.GetQueue(guildID) == nil {
		h.writeEngineError(w, guildID, music.ErrQueueNotFound)
		return
	}
	h.simple(w, r, h.engine.Stop)
}

func (h *GuildHandler) ClearHandler(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guild_id"]
	n, err := h.engine.Clear(r.Context(), guildID)
	if err != nil {
		h.writeEngineError(w, guildID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (h *GuildHandler) MoveHandler(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guild_id"]
	var req moveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := h.engine.Move(r.Context(), guildID, req.From, req.To)
	if err != nil {
		h.writeEngineError(w, guildID, err)
		return
	}
	writeJSON(w, http.StatusOK, TrackResponse{Track: t})
}

// RemoveHandler deletes the track at the 1-based position in the URL.
func (h *GuildHandler) RemoveHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	guildID := vars["guild_id"]
	pos, err := strconv.Atoi(vars["pos"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid position")
		return
	}
	t, err := h.engine.Remove(r.Context(), guildID, pos)
	if err != nil {
		h.writeEngineError(w, guildID, err)
		return
	}
	writeJSON(w, http.StatusOK, TrackResponse{Track: t})
}

func (h *GuildHandler) SeekHandler(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guild_id"]
	var req seekRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.engine.Seek(r.Context(), guildID, time.Duration(req.PositionMs)*time.Millisecond); err != nil {
		h.writeEngineError(w, guildID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VolumeHandler sets the volume. Applied is false when no queue is active and
// only the stored default changed.
func (h *GuildHandler) VolumeHandler(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guild_id"]
	var req volumeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Volume == nil {
		writeError(w, http.StatusBadRequest, "volume is required")
		return
	}
	applied, err := h.engine.SetVolume(r.Context(), guildID, *req.Volume)
	if err != nil {
		h.writeEngineError(w, guildID, err)
		return
	}
	writeJSON(w, http.StatusOK, volumeResponse{Volume: *req.Volume, Applied: applied})
}

func (h *GuildHandler) LoopHandler(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guild_id"]
	var req loopRequest
	if !decodeBody(w, r, &req) {
		return
	}
	mode, err := model.ParseLoopMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.engine.SetLoopMode(r.Context(), guildID, mode); err != nil {
		h.writeEngineError(w, guildID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]model.LoopMode{"mode": mode})
}

// ViewersHandler lists the dashboard users with a live socket on the guild.
func (h *GuildHandler) ViewersHandler(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guild_id"]
	viewers := []string{}
	if h.viewers != nil {
		ids, err := h.viewers.Viewers(r.Context(), guildID)
		if err != nil {
			logger.Warn("failed to list viewers", logger.Guild(guildID), logger.ErrorField(err))
		} else if ids != nil {
			viewers = ids
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"viewers":     viewers,
		"connections": h.hub.ClientCount(guildID),
	})
}

// WebSocketHandler upgrades the request and streams queue snapshots. The
// current snapshot is sent first so the client never waits for a change.
func (h *GuildHandler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guild_id"]
	userID, _ := UserIDFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.Guild(guildID), logger.ErrorField(err))
		return
	}

	client := h.hub.NewClient(conn, guildID, userID)
	if data, err := encodeMessage(MsgTypeQueue, guildID, h.engine.GetQueue(guildID)); err == nil {
		client.Send <- data
	}
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

func (h *GuildHandler) simple(w http.ResponseWriter, r *http.Request, op func(context.Context, string) error) {
	guildID := mux.Vars(r)["guild_id"]
	if err := op(r.Context(), guildID); err != nil {
		h.writeEngineError(w, guildID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ========== Helpers ==========

func (h *GuildHandler) writeEngineError(w http.ResponseWriter, guildID string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("dashboard request failed", logger.Guild(guildID), logger.ErrorField(err))
	}
	writeError(w, status, messageFor(err))
}

// statusFor maps engine and search errors onto HTTP status codes.
func statusFor(err error) int {
	var loadErr lavalink.ErrorResult
	switch {
	case errors.Is(err, music.ErrQueueNotFound), errors.Is(err, search.ErrNoMatches):
		return http.StatusNotFound
	case errors.Is(err, music.ErrQueueEmpty),
		errors.Is(err, music.ErrNothingPlaying),
		errors.Is(err, music.ErrNothingToShuffle),
		errors.Is(err, music.ErrNotSeekable):
		return http.StatusConflict
	case errors.Is(err, music.ErrInvalidRequest),
		errors.Is(err, music.ErrInvalidPosition),
		errors.Is(err, music.ErrNotInVoiceChannel),
		errors.Is(err, music.ErrNoValidTracks),
		errors.Is(err, search.ErrEmptyQuery),
		errors.Is(err, search.ErrSpotifyDisabled):
		return http.StatusBadRequest
	case errors.Is(err, music.ErrNoNodeAvailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &loadErr):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func messageFor(err error) string {
	var loadErr lavalink.ErrorResult
	switch {
	case errors.Is(err, search.ErrNoMatches):
		return "No results found."
	case errors.Is(err, search.ErrEmptyQuery):
		return "query is required"
	case errors.Is(err, search.ErrSpotifyDisabled):
		return "Spotify links are not enabled."
	case errors.As(err, &loadErr):
		return "Could not load that: " + loadErr.Message
	}
	return music.UserMessage(err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
