package config

import (
	"os"

	"github.com/dmitrijs2005/clusterdeck/internal/flagx"
	"github.com/dmitrijs2005/clusterdeck/internal/timex"
	"github.com/goccy/go-json"
)

// JsonConfig is the on-disk shape of the -c/-config file. Durations use
// timex.Duration so both "24h" and integer nanoseconds are accepted.
// Pointers distinguish "absent" from "false" for booleans.
type JsonConfig struct {
	HTTPAddr             string         `json:"http_addr"`
	DatabaseDSN          string         `json:"database_dsn"`
	SessionTTL           timex.Duration `json:"session_ttl"`
	CookieSecure         *bool          `json:"cookie_secure"`
	CookieDomain         string         `json:"cookie_domain"`
	SignInPath           string         `json:"sign_in_path"`
	BackendURL           string         `json:"backend_url"`
	APIKey               string         `json:"api_key"`
	RelayMaxMessageBytes int64          `json:"relay_max_message_bytes"`
	TMDBBaseURL          string         `json:"tmdb_base_url"`
	TMDBToken            string         `json:"tmdb_token"`
	TMDBLanguage         string         `json:"tmdb_language"`
	S3RootUser           string         `json:"s3_root_user"`
	S3RootPassword       string         `json:"s3_root_password"`
	S3Bucket             string         `json:"s3_bucket"`
	S3Region             string         `json:"s3_region"`
	S3BaseEndpoint       string         `json:"s3_base_endpoint"`
	LogLevel             string         `json:"log_level"`
	LogFormat            string         `json:"log_format"`
	AllowedOrigins       []string       `json:"allowed_origins"`
}

// parseJson loads the file named by -c/-config (if any) and copies every
// non-empty value into config. Unreadable files or invalid JSON panic.
func parseJson(config *Config, args []string) {
	jsonConfigFile := flagx.JSONConfigPath(args)

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	set(&config.HTTPAddr, c.HTTPAddr)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.CookieDomain, c.CookieDomain)
	set(&config.SignInPath, c.SignInPath)
	set(&config.BackendURL, c.BackendURL)
	set(&config.APIKey, c.APIKey)
	set(&config.TMDBBaseURL, c.TMDBBaseURL)
	set(&config.TMDBToken, c.TMDBToken)
	set(&config.TMDBLanguage, c.TMDBLanguage)
	set(&config.S3RootUser, c.S3RootUser)
	set(&config.S3RootPassword, c.S3RootPassword)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	set(&config.LogLevel, c.LogLevel)
	set(&config.LogFormat, c.LogFormat)

	if c.SessionTTL.Duration > 0 {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.RelayMaxMessageBytes > 0 {
		config.RelayMaxMessageBytes = c.RelayMaxMessageBytes
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	if len(c.AllowedOrigins) > 0 {
		config.AllowedOrigins = c.AllowedOrigins
	}
}
