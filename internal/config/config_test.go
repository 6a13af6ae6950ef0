package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaults_Valid(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"concurrency too low", func(c *Config) { c.General.MaxConcurrentFetches = 0 }, "maxConcurrentFetches"},
		{"concurrency too high", func(c *Config) { c.General.MaxConcurrentFetches = 51 }, "maxConcurrentFetches"},
		{"bad log level", func(c *Config) { c.General.LogLevel = "verbose" }, "logLevel"},
		{"missing db path", func(c *Config) { c.Storage.DBPath = "" }, "dbPath"},
		{"missing download dir", func(c *Config) { c.Storage.DownloadDir = "" }, "downloadDir"},
		{"missing ytdlp path", func(c *Config) { c.Retrieval.YtdlpPath = "" }, "ytdlpPath"},
		{"zero timeout", func(c *Config) { c.Retrieval.TimeoutSec = 0 }, "timeoutSeconds"},
		{"bad rate limit", func(c *Config) { c.Retrieval.RateLimit = "fast" }, "rateLimit"},
		{"metrics without addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }, "metrics.addr"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := Defaults()
			c.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Fatalf("error %q does not mention %q", err, c.want)
			}
		})
	}
}

func TestValidate_RateLimitForms(t *testing.T) {
	for _, limit := range []string{"", "500K", "1M", "2.5M", "100", "750k"} {
		cfg := Defaults()
		cfg.Retrieval.RateLimit = limit
		if err := Validate(cfg); err != nil {
			t.Fatalf("rate limit %q should be accepted: %v", limit, err)
		}
	}
	for _, limit := range []string{"K", "500KB", "-1M", "1 M"} {
		cfg := Defaults()
		cfg.Retrieval.RateLimit = limit
		if err := Validate(cfg); err == nil {
			t.Fatalf("rate limit %q should be rejected", limit)
		}
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Defaults()
	cfg.Telegram.Token = "123:abc"
	cfg.Telegram.AllowFrom = FlexStringList{"1001", "1002"}
	cfg.Retrieval.RateLimit = "250K"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Telegram.Token != "123:abc" {
		t.Fatalf("token lost in round trip: %q", loaded.Telegram.Token)
	}
	if len(loaded.Telegram.AllowFrom) != 2 || loaded.Telegram.AllowFrom[0] != "1001" {
		t.Fatalf("allowFrom lost in round trip: %v", loaded.Telegram.AllowFrom)
	}
	if loaded.Retrieval.RateLimit != "250K" {
		t.Fatalf("rateLimit lost in round trip: %q", loaded.Retrieval.RateLimit)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	// Valid JSON, invalid values.
	content := `{"general": {"maxConcurrentFetches": 0}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("FETCHBOT_TEST_TOKEN", "999:zzz")
	os.Unsetenv("FETCHBOT_TEST_UNSET")

	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
  "telegram": {
    "token": "${FETCHBOT_TEST_TOKEN}",
    "parseMode": "${FETCHBOT_TEST_UNSET:-HTML}"
  }
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "999:zzz" {
		t.Fatalf("env var not expanded: %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.ParseMode != "HTML" {
		t.Fatalf("default value not applied: %q", cfg.Telegram.ParseMode)
	}
}

func TestExpandEnvVars_KeepsUnknown(t *testing.T) {
	os.Unsetenv("FETCHBOT_TEST_MISSING")
	in := "value-${FETCHBOT_TEST_MISSING}-end"
	if got := ExpandEnvVars(in); got != in {
		t.Fatalf("unset var without default must stay verbatim, got %q", got)
	}
}

func TestFlexStringList_MixedTypes(t *testing.T) {
	var f FlexStringList
	if err := f.UnmarshalJSON([]byte(`["123", 456]`)); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if len(f) != 2 || f[0] != "123" || f[1] != "456" {
		t.Fatalf("unexpected result: %v", f)
	}
}

func TestSanitize_RedactsToken(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Token = "secret"
	out := Sanitize(cfg)
	if out.Telegram.Token != "***" {
		t.Fatalf("token not redacted: %q", out.Telegram.Token)
	}
	if cfg.Telegram.Token != "secret" {
		t.Fatal("Sanitize must not mutate the original")
	}
}
