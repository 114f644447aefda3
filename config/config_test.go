package config

import (
	"testing"
	"time"
)

func TestParseLavalinkNodes(t *testing.T) {
	nodes := parseLavalinkNodes("main@lava.local:2333, backup@10.0.0.2:4000,bare-host", "pw", true)
	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(nodes))
	}

	if nodes[0].Name != "main" || nodes[0].Host != "lava.local" || nodes[0].Port != 2333 {
		t.Errorf("unexpected first node: %+v", nodes[0])
	}
	if nodes[1].Name != "backup" || nodes[1].Port != 4000 {
		t.Errorf("unexpected second node: %+v", nodes[1])
	}
	if nodes[2].Name != "node-3" || nodes[2].Host != "bare-host" || nodes[2].Port != 2333 {
		t.Errorf("unexpected third node: %+v", nodes[2])
	}
	for _, n := range nodes {
		if n.Password != "pw" || !n.Secure {
			t.Errorf("password/secure not propagated: %+v", n)
		}
	}
}

func TestParseLavalinkNodesEmpty(t *testing.T) {
	if nodes := parseLavalinkNodes(" , ", "pw", false); len(nodes) != 0 {
		t.Errorf("expected no nodes, got %d", len(nodes))
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DEFAULT_VOLUME", "250")
	t.Setenv("DEFAULT_LOOP", "queue")
	t.Setenv("DEFAULT_AUTOLEAVE", "false")
	t.Setenv("SETTINGS_CACHE_TTL", "30s")

	cfg := fromEnv()
	if cfg.DefaultVolume != 100 {
		t.Errorf("expected volume clamped to 100, got %d", cfg.DefaultVolume)
	}
	if cfg.DefaultLoopMode != "queue" {
		t.Errorf("expected loop queue, got %s", cfg.DefaultLoopMode)
	}
	if cfg.DefaultAutoLeave {
		t.Errorf("expected autoLeave false")
	}
	if cfg.SettingsCacheTTL != 30*time.Second {
		t.Errorf("expected 30s TTL, got %s", cfg.SettingsCacheTTL)
	}
}

func TestGetEnvIntHex(t *testing.T) {
	t.Setenv("EMBED_COLOR", "0xFF0000")
	if got := getEnvInt("EMBED_COLOR", 0); got != 0xFF0000 {
		t.Errorf("expected 0xFF0000, got %#x", got)
	}
}
