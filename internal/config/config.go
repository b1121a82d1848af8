package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/robalobadob/dailypuzzle/internal/game"
	"github.com/robalobadob/dailypuzzle/internal/store"
)

// Config holds process-wide settings.
// It is read from the environment once at startup and treated as immutable.
type Config struct {
	// Server
	Port           string
	RequestTimeout time.Duration
	ClientOrigin   string

	// Logging
	LogLevel  string
	LogFormat string

	// Storage
	DBDriver    string
	DatabaseURL string
	CatalogFile string

	// Identity
	JWTSecret  string
	CookieName string

	// Daily schedule
	CronSecret string
	DailySalt  string // secret; empty means targets are drawn from crypto/rand
	Timezone   string

	// Leaderboard cache
	RedisURL            string
	LeaderboardCacheTTL time.Duration

	// Rate limit
	RateLimitGuessesPerMinute int

	// Eligible pools
	PoolAnimeMaxRank      int
	PoolStudioWorkMaxRank int
	PoolBannerMaxRank     int

	// Hint ladder
	HintDescription  int
	HintCharacters   int
	HintBlurredImage int
	HintFullImage    int

	// Trigger client (cron subcommand)
	CronSchedule string
	TriggerURL   string
}

const minSaltLen = 16

// Load reads .env (if present) and then the environment.
// Malformed optional values fall back to their defaults; an unknown timezone
// or storage driver is an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Port = getEnvString("PORT", "5175")
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", 10*time.Second)
	cfg.ClientOrigin = getEnvString("CLIENT_ORIGIN", "http://localhost:5173")

	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.LogFormat = getEnvString("LOG_FORMAT", "console")

	cfg.DBDriver = strings.ToLower(getEnvString("DB_DRIVER", "sqlite3"))
	cfg.DatabaseURL = getEnvString("DATABASE_URL", "./data/puzzle.db")
	cfg.CatalogFile = getEnvString("CATALOG_FILE", "")

	cfg.JWTSecret = getEnvString("JWT_SECRET", "dev-secret-change-me")
	cfg.CookieName = getEnvString("COOKIE_NAME", "token")

	cfg.CronSecret = os.Getenv("CRON_SECRET")
	cfg.DailySalt = os.Getenv("DAILY_SALT")
	cfg.Timezone = getEnvString("PUZZLE_TIMEZONE", "UTC")

	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.LeaderboardCacheTTL = getEnvDuration("LEADERBOARD_CACHE_TTL", 30*time.Second)

	cfg.RateLimitGuessesPerMinute = getEnvInt("RATE_LIMIT_GUESSES_PER_MINUTE", 30)

	cfg.PoolAnimeMaxRank = getEnvInt("POOL_ANIME_MAX_RANK", 500)
	cfg.PoolStudioWorkMaxRank = getEnvInt("POOL_STUDIO_WORK_MAX_RANK", 200)
	cfg.PoolBannerMaxRank = getEnvInt("POOL_BANNER_MAX_RANK", 1000)

	def := game.DefaultHintLadder
	cfg.HintDescription = getEnvPositiveInt("HINT_DESCRIPTION_AT", def.Description)
	cfg.HintCharacters = getEnvPositiveInt("HINT_CHARACTERS_AT", def.Characters)
	cfg.HintBlurredImage = getEnvPositiveInt("HINT_BLURRED_IMAGE_AT", def.BlurredImage)
	cfg.HintFullImage = getEnvPositiveInt("HINT_FULL_IMAGE_AT", def.FullImage)

	cfg.CronSchedule = getEnvString("CRON_SCHEDULE", "0 0 * * *")
	cfg.TriggerURL = getEnvString("TRIGGER_URL", "http://localhost:"+cfg.Port+"/api/cron/daily")

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("PUZZLE_TIMEZONE: %w", err)
	}
	if cfg.DailySalt != "" && len(cfg.DailySalt) < minSaltLen {
		return nil, fmt.Errorf("DAILY_SALT: must be at least %d characters or unset", minSaltLen)
	}
	switch cfg.DBDriver {
	case "sqlite3", "postgres", "memory":
	default:
		return nil, fmt.Errorf("DB_DRIVER: unsupported driver %q (want sqlite3, postgres or memory)", cfg.DBDriver)
	}

	return cfg, nil
}

// Hints is the configured hint ladder.
func (c *Config) Hints() game.HintLadder {
	return game.HintLadder{
		Description:  c.HintDescription,
		Characters:   c.HintCharacters,
		BlurredImage: c.HintBlurredImage,
		FullImage:    c.HintFullImage,
	}
}

// PoolFilters are the eligibility rules of each game type.
func (c *Config) PoolFilters() map[game.Type]store.PoolFilter {
	return map[game.Type]store.PoolFilter{
		game.TypeAnime:  {Kind: game.KindAnime, MaxPopularityRank: c.PoolAnimeMaxRank},
		game.TypeStudio: {Kind: game.KindStudio, MaxWorkRank: c.PoolStudioWorkMaxRank},
		game.TypeBanner: {Kind: game.KindAnime, MaxPopularityRank: c.PoolBannerMaxRank, RequireBanner: true},
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// getEnvPositiveInt is getEnvInt that also rejects zero and negative values.
func getEnvPositiveInt(key string, defaultVal int) int {
	if i := getEnvInt(key, defaultVal); i > 0 {
		return i
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
