package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv         string
	LogLevel       string
	HTTPAddr       string
	MetricsAddr    string
	Store          string // mysql | memory
	MySQLDSN       string
	RedisAddr      string
	RedisDB        int
	RedisPass      string
	CacheTTL       time.Duration
	JWTSecret      string
	AMQPURL        string
	CatalogBase    string
	CatalogKey     string
	CatalogRPS     int
	SyncWorkers    int
	SyncHostelIDs  []int64
	CalendarFanout int
	RequestTimeout time.Duration
}

// Load reads the environment, after merging an optional .env file from the
// working directory. Real environment variables win over .env entries.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg(".env could not be parsed")
	}
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	c := Config{
		AppEnv:         env("APP_ENV", "prod"),
		LogLevel:       env("LOG_LEVEL", "info"),
		HTTPAddr:       env("HTTP_ADDR", ":8080"),
		MetricsAddr:    env("METRICS_ADDR", ""),
		Store:          strings.ToLower(env("STORE", "mysql")),
		MySQLDSN:       env("MYSQL_DSN", "root:root@tcp(localhost:3306)/hostel?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:      env("REDIS_ADDR", "localhost:6379"),
		RedisPass:      env("REDIS_PASSWORD", ""),
		RedisDB:        atoi("REDIS_DB", 0),
		CacheTTL:       time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		JWTSecret:      env("JWT_SECRET", ""),
		AMQPURL:        env("AMQP_URL", ""),
		CatalogBase:    env("CATALOG_BASE_URL", "http://localhost:8000/api/v1"),
		CatalogKey:     env("CATALOG_API_KEY", ""),
		CatalogRPS:     atoi("CATALOG_RPS", 5),
		SyncWorkers:    atoi("SYNC_WORKERS", 8),
		SyncHostelIDs:  parseIDs(env("SYNC_HOSTEL_IDS", "")),
		CalendarFanout: atoi("CALENDAR_FANOUT", 8),
		RequestTimeout: time.Duration(atoi("REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// parseIDs reads a comma separated id list, skipping blanks and junk.
func parseIDs(s string) []int64 {
	var out []int64
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n <= 0 {
			log.Warn().Str("id", p).Msg("SYNC_HOSTEL_IDS: skipping invalid id")
			continue
		}
		out = append(out, n)
	}
	return out
}
