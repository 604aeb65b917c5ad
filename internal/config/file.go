package config

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config with TOML-friendly types. Durations are strings.
type FileConfig struct {
	Port               string `toml:"port"`
	RateLimitPerMinute int    `toml:"rate_limit_per_minute"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	Ledger struct {
		Backend   string `toml:"backend"`
		SQLiteDSN string `toml:"sqlite_dsn"`
	} `toml:"ledger"`

	Session struct {
		Secret       string `toml:"secret"`
		TTL          string `toml:"ttl"`
		MaxAge       string `toml:"max_age"`
		MaxSessions  int    `toml:"max_sessions"`
		ReapSchedule string `toml:"reap_schedule"`
	} `toml:"session"`

	AMQP struct {
		URL        string `toml:"url"`
		Exchange   string `toml:"exchange"`
		RoutingKey string `toml:"routing_key"`
	} `toml:"amqp"`

	Google struct {
		SpreadsheetID      string `toml:"spreadsheet_id"`
		SheetName          string `toml:"sheet_name"`
		ServiceAccountFile string `toml:"service_account_file"`
		ServiceAccountJSON string `toml:"service_account_json"`
		OAuthClientFile    string `toml:"oauth_client_file"`
		OAuthClientJSON    string `toml:"oauth_client_json"`
		OAuthTokenFile     string `toml:"oauth_token_file"`
	} `toml:"google"`

	Chart struct {
		AssetsHost string `toml:"assets_host"`
	} `toml:"chart"`
}

// LoadFile reads and parses a TOML config file from the given path.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// ApplyFile copies every non-zero field of fc onto cfg.
func ApplyFile(cfg *Config, fc FileConfig) error {
	setString(&cfg.Port, fc.Port)
	setInt(&cfg.RateLimitPerMinute, fc.RateLimitPerMinute)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)

	setString(&cfg.LedgerBackend, fc.Ledger.Backend)
	setString(&cfg.SQLiteDSN, fc.Ledger.SQLiteDSN)

	setString(&cfg.SessionSecret, fc.Session.Secret)
	if err := setDuration("session.ttl", &cfg.SessionTTL, fc.Session.TTL); err != nil {
		return err
	}
	if err := setDuration("session.max_age", &cfg.SessionMaxAge, fc.Session.MaxAge); err != nil {
		return err
	}
	setInt(&cfg.MaxSessions, fc.Session.MaxSessions)
	setString(&cfg.SessionReapSchedule, fc.Session.ReapSchedule)

	setString(&cfg.AMQPURL, fc.AMQP.URL)
	setString(&cfg.AMQPExchange, fc.AMQP.Exchange)
	setString(&cfg.AMQPRoutingKey, fc.AMQP.RoutingKey)

	setString(&cfg.GoogleSpreadsheetID, fc.Google.SpreadsheetID)
	setString(&cfg.GoogleSheetName, fc.Google.SheetName)
	setString(&cfg.GoogleServiceAccountFile, fc.Google.ServiceAccountFile)
	setString(&cfg.GoogleServiceAccountJSON, fc.Google.ServiceAccountJSON)
	setString(&cfg.GoogleOAuthClientFile, fc.Google.OAuthClientFile)
	setString(&cfg.GoogleOAuthClientJSON, fc.Google.OAuthClientJSON)
	setString(&cfg.GoogleOAuthTokenFile, fc.Google.OAuthTokenFile)

	setString(&cfg.ChartAssetsHost, fc.Chart.AssetsHost)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(key string, dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}
