package config

import (
	"errors"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv copies variables from path into the process environment.
// Variables that are already set win. A missing file is not an error.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}
}

// parseEnv overlays settings found through lookup (os.LookupEnv in
// production). SESSION_TTL takes a Go duration ("24h"); COOKIE_SECURE a
// boolean; CORS_ALLOWED_ORIGINS a comma separated list.
func parseEnv(config *Config, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("HTTP_ADDR", &config.HTTPAddr)
	str("POSTGRES_URL", &config.DatabaseDSN)
	str("COOKIE_DOMAIN", &config.CookieDomain)
	str("SIGN_IN_PATH", &config.SignInPath)
	str("BACKEND_URL", &config.BackendURL)
	str("API_KEY", &config.APIKey)
	str("TMDB_BASE_URL", &config.TMDBBaseURL)
	str("TMDB_READ_ACCESS_TOKEN", &config.TMDBToken)
	str("TMDB_LANGUAGE", &config.TMDBLanguage)
	str("S3_ROOT_USER", &config.S3RootUser)
	str("S3_ROOT_PASSWORD", &config.S3RootPassword)
	str("S3_BUCKET", &config.S3Bucket)
	str("S3_REGION", &config.S3Region)
	str("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	str("LOG_LEVEL", &config.LogLevel)
	str("LOG_FORMAT", &config.LogFormat)

	if v, ok := lookup("SESSION_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		config.SessionTTL = d
	}

	if v, ok := lookup("COOKIE_SECURE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			panic(err)
		}
		config.CookieSecure = b
	}

	if v, ok := lookup("RELAY_MAX_MESSAGE_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			panic(err)
		}
		config.RelayMaxMessageBytes = n
	}

	if v, ok := lookup("CORS_ALLOWED_ORIGINS"); ok && v != "" {
		config.AllowedOrigins = splitList(v)
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
