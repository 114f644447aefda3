package music

import (
	"context"

	"github.com/wendellddr/Bot-Spotify-sub000/core/lavalink"
)

// PoolNodes adapts a lavalink pool to AudioNodes.
func PoolNodes(pool *lavalink.Pool) AudioNodes {
	return poolNodes{pool: pool}
}

type poolNodes struct {
	pool *lavalink.Pool
}

func (p poolNodes) Resolve(ctx context.Context, identifier string) (lavalink.LoadResult, error) {
	return p.pool.Resolve(ctx, identifier)
}

func (p poolNodes) Join(ctx context.Context, guildID, channelID string) (Player, error) {
	player, err := p.pool.Join(ctx, guildID, channelID)
	if err != nil {
		return nil, err
	}
	return player, nil
}

func (p poolNodes) Leave(ctx context.Context, guildID string) error {
	return p.pool.Leave(ctx, guildID)
}
