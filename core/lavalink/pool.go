package lavalink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wendellddr/Bot-Spotify-sub000/logger"
)

var (
	ErrNoNodeAvailable  = errors.New("no audio node available")
	ErrNodeDisconnected = errors.New("audio node disconnected")
)

const voiceConnectTimeout = 15 * time.Second

// VoiceConnector joins and leaves Discord voice channels on behalf of the pool.
// Voice state/server updates must be fed back through HandleVoiceStateUpdate and
// HandleVoiceServerUpdate.
type VoiceConnector interface {
	JoinVoice(guildID, channelID string) error
	LeaveVoice(guildID string) error
}

// Pool manages the node connections and one Player per guild.
type Pool struct {
	nodes []*Node
	voice VoiceConnector

	mu      sync.RWMutex
	players map[string]*Player

	handlersMu    sync.RWMutex
	readyHandlers []func(node string)
	errorHandlers []func(node string, err error)
	closeHandlers []func(node string, code int, reason string)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a pool. Nothing connects until Connect is called.
func NewPool(configs []NodeConfig, voice VoiceConnector) *Pool {
	p := &Pool{
		voice:   voice,
		players: make(map[string]*Player),
	}
	for _, cfg := range configs {
		p.nodes = append(p.nodes, newNode(cfg, p))
	}
	return p
}

// OnReady registers a handler for node ready events.
func (p *Pool) OnReady(fn func(node string)) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	p.readyHandlers = append(p.readyHandlers, fn)
}

// OnError registers a handler for node connection errors.
func (p *Pool) OnError(fn func(node string, err error)) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	p.errorHandlers = append(p.errorHandlers, fn)
}

// OnClose registers a handler for node disconnects.
func (p *Pool) OnClose(fn func(node string, code int, reason string)) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	p.closeHandlers = append(p.closeHandlers, fn)
}

// Connect starts one connection loop per node. userID is the bot's Discord user ID.
func (p *Pool) Connect(ctx context.Context, userID string) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, n := range p.nodes {
		p.wg.Add(1)
		go func(n *Node) {
			defer p.wg.Done()
			n.run(ctx, userID)
		}(n)
	}
	logger.Info("audio node pool connecting", logger.Int("nodes", len(p.nodes)))
}

// Close disconnects every node and waits for the loops to exit.
func (p *Pool) Close() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// idealNode returns the connected node with the fewest players.
func (p *Pool) idealNode() (*Node, error) {
	var best *Node
	for _, n := range p.nodes {
		if !n.Connected() {
			continue
		}
		if best == nil || n.load() < best.load() {
			best = n
		}
	}
	if best == nil {
		return nil, ErrNoNodeAvailable
	}
	return best, nil
}

// Resolve loads tracks for identifier from any connected node.
func (p *Pool) Resolve(ctx context.Context, identifier string) (LoadResult, error) {
	node, err := p.idealNode()
	if err != nil {
		return nil, err
	}
	return node.loadTracks(ctx, identifier)
}

// Join connects the bot to channelID and returns the guild's player once the
// node has accepted the voice session.
func (p *Pool) Join(ctx context.Context, guildID, channelID string) (*Player, error) {
	p.mu.Lock()
	player, ok := p.players[guildID]
	if ok && !player.node.Connected() {
		delete(p.players, guildID)
		ok = false
	}
	if !ok {
		node, err := p.idealNode()
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		player = newPlayer(guildID, node)
		p.players[guildID] = player
	}
	p.mu.Unlock()

	if err := p.voice.JoinVoice(guildID, channelID); err != nil {
		p.dropPlayer(guildID, player)
		return nil, fmt.Errorf("join voice channel: %w", err)
	}

	timer := time.NewTimer(voiceConnectTimeout)
	defer timer.Stop()

	select {
	case <-player.voiceReady:
		return player, nil
	case <-timer.C:
		p.dropPlayer(guildID, player)
		_ = p.voice.LeaveVoice(guildID)
		return nil, fmt.Errorf("voice connection for guild %s timed out", guildID)
	case <-ctx.Done():
		p.dropPlayer(guildID, player)
		return nil, ctx.Err()
	}
}

// Leave destroys the guild's player on its node and disconnects voice.
func (p *Pool) Leave(ctx context.Context, guildID string) error {
	p.mu.Lock()
	player := p.players[guildID]
	delete(p.players, guildID)
	p.mu.Unlock()

	var errs []error
	if player != nil {
		player.SetListener(Listener{})
		if err := player.node.destroyPlayer(ctx, guildID); err != nil && !errors.Is(err, ErrNodeDisconnected) {
			errs = append(errs, err)
		}
	}
	if err := p.voice.LeaveVoice(guildID); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (p *Pool) dropPlayer(guildID string, player *Player) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.players[guildID] == player {
		delete(p.players, guildID)
	}
}

func (p *Pool) player(guildID string) *Player {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.players[guildID]
}

// HandleVoiceStateUpdate records the bot's voice session for a guild.
func (p *Pool) HandleVoiceStateUpdate(guildID, channelID, sessionID string) {
	player := p.player(guildID)
	if player == nil || channelID == "" {
		return
	}
	if player.setVoiceSession(sessionID) {
		go p.forwardVoice(player)
	}
}

// HandleVoiceServerUpdate records the voice server for a guild.
func (p *Pool) HandleVoiceServerUpdate(guildID, token, endpoint string) {
	player := p.player(guildID)
	if player == nil {
		return
	}
	if player.setVoiceServer(token, endpoint) {
		go p.forwardVoice(player)
	}
}

func (p *Pool) forwardVoice(player *Player) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	voice := player.voiceState()
	if err := player.node.updatePlayer(ctx, player.guildID, playerUpdate{Voice: &voice}); err != nil {
		logger.Warn("forward voice update failed",
			logger.Guild(player.guildID),
			logger.String("node", player.node.Name()),
			logger.ErrorField(err))
		return
	}
	player.markVoiceReady()
}

func (p *Pool) updatePosition(guildID string, state playerState) {
	if player := p.player(guildID); player != nil {
		player.setPosition(state.Position)
	}
}

func (p *Pool) dispatchEnd(guildID string, track Track, reason EndReason) {
	player := p.player(guildID)
	if player == nil {
		return
	}
	if l := player.currentListener(); l.OnEnd != nil {
		l.OnEnd(track, reason)
	}
}

func (p *Pool) dispatchException(guildID string, track Track, exc Exception) {
	player := p.player(guildID)
	if player == nil {
		return
	}
	if l := player.currentListener(); l.OnException != nil {
		l.OnException(track, exc)
	}
}

func (p *Pool) emitReady(node string) {
	logger.Info("audio node ready", logger.String("node", node))
	p.handlersMu.RLock()
	defer p.handlersMu.RUnlock()
	for _, fn := range p.readyHandlers {
		fn(node)
	}
}

func (p *Pool) emitError(node string, err error) {
	logger.Warn("audio node error", logger.String("node", node), logger.ErrorField(err))
	p.handlersMu.RLock()
	defer p.handlersMu.RUnlock()
	for _, fn := range p.errorHandlers {
		fn(node, err)
	}
}

func (p *Pool) emitClose(node string, code int, reason string) {
	logger.Warn("audio node closed",
		logger.String("node", node),
		logger.Int("code", code),
		logger.String("reason", reason))

	// Players on a closed node are gone on the node side too.
	p.mu.Lock()
	for guildID, player := range p.players {
		if player.node.Name() == node {
			delete(p.players, guildID)
		}
	}
	p.mu.Unlock()

	p.handlersMu.RLock()
	defer p.handlersMu.RUnlock()
	for _, fn := range p.closeHandlers {
		fn(node, code, reason)
	}
}
