package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LavalinkNode describes one audio node connection.
type LavalinkNode struct {
	Name     string
	Host     string
	Port     int
	Password string
	Secure   bool
}

// Config stores the application configuration.
type Config struct {
	DiscordToken   string
	DevGuildID     string // Register slash commands to this guild only (faster during development)
	LavalinkNodes  []LavalinkNode
	SpotifyID      string
	SpotifySecret  string
	DashboardAddr  string
	DashboardKey   string  // HMAC secret for dashboard JWTs
	DashboardRate  float64 // Requests per second per user
	DashboardBurst int
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	// Redis
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisDB          int
	SettingsCacheTTL time.Duration
	SearchCacheTTL   time.Duration
	// Global guild defaults, used when a guild has no stored settings
	DefaultVolume          int
	DefaultLoopMode        string
	DefaultAutoQueue       bool
	DefaultAutoLeave       bool
	DefaultAutoPause       bool
	DefaultTwentyFourSeven bool
	EmbedColor             int
	IconURL                string
	// Logging
	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 0, 64); err == nil {
			return int(intVal)
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvFloat gets an environment variable as float64 or returns a default value.
func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration gets an environment variable as time.Duration or returns a default value.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// parseLavalinkNodes parses "name@host:port" entries separated by commas.
// Entries without a name get "node-N".
func parseLavalinkNodes(raw, password string, secure bool) []LavalinkNode {
	var nodes []LavalinkNode
	for i, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name := "node-" + strconv.Itoa(i+1)
		if at := strings.Index(entry, "@"); at >= 0 {
			name = entry[:at]
			entry = entry[at+1:]
		}

		host, port := entry, 2333
		if colon := strings.LastIndex(entry, ":"); colon >= 0 {
			host = entry[:colon]
			if p, err := strconv.Atoi(entry[colon+1:]); err == nil {
				port = p
			}
		}

		nodes = append(nodes, LavalinkNode{
			Name:     name,
			Host:     host,
			Port:     port,
			Password: password,
			Secure:   secure,
		})
	}
	return nodes
}

// clampVolume keeps configured defaults inside the accepted range.
func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}
	return fromEnv()
}

func fromEnv() *Config {
	return &Config{
		DiscordToken:   os.Getenv("DISCORD_TOKEN"),
		DevGuildID:     getEnv("DISCORD_GUILD_ID", ""),
		LavalinkNodes:  parseLavalinkNodes(getEnv("LAVALINK_NODES", "main@127.0.0.1:2333"), getEnv("LAVALINK_PASSWORD", "youshallnotpass"), getEnvBool("LAVALINK_SECURE", false)),
		SpotifyID:      getEnv("SPOTIFY_ID", ""),
		SpotifySecret:  getEnv("SPOTIFY_SECRET", ""),
		DashboardAddr:  getEnv("DASHBOARD_ADDR", ":8080"),
		DashboardKey:   os.Getenv("DASHBOARD_SECRET"),
		DashboardRate:  getEnvFloat("DASHBOARD_RATE_LIMIT", 5),
		DashboardBurst: getEnvInt("DASHBOARD_RATE_BURST", 10),
		DBHost:         getEnv("DB_HOST", "127.0.0.1"),
		DBPort:         getEnv("DB_PORT", "3306"),
		DBUser:         getEnv("DB_USER", "root"),
		DBPassword:     os.Getenv("DB_PASSWORD"), // No hardcoded default for the password
		DBName:         getEnv("DB_NAME", "musicbot"),

		RedisHost:        getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:        getEnv("REDIS_PORT", "6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		SettingsCacheTTL: getEnvDuration("SETTINGS_CACHE_TTL", 10*time.Minute),
		SearchCacheTTL:   getEnvDuration("SEARCH_CACHE_TTL", 24*time.Hour),

		DefaultVolume:          clampVolume(getEnvInt("DEFAULT_VOLUME", 80)),
		DefaultLoopMode:        getEnv("DEFAULT_LOOP", "off"),
		DefaultAutoQueue:       getEnvBool("DEFAULT_AUTOQUEUE", false),
		DefaultAutoLeave:       getEnvBool("DEFAULT_AUTOLEAVE", true),
		DefaultAutoPause:       getEnvBool("DEFAULT_AUTOPAUSE", false),
		DefaultTwentyFourSeven: getEnvBool("DEFAULT_247", false),
		EmbedColor:             getEnvInt("EMBED_COLOR", 0x1DB954),
		IconURL:                getEnv("ICON_URL", ""),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 50),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 14),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}
