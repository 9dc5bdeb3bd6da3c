package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"DB_PATH", "SERVER_PORT", "LOG_LEVEL", "SENTRY_DSN", "ENV",
		"SITE_CONFIG_FILE", "SITE_NAME", "SITE_SERVER", "SITE_LOGO", "SITE_SCRIPT_PATH", "SITE_ARTICLE_PATH",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "RATE_LIMIT_TTL",
	} {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unsetting %s failed: %v", key, err)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.DBPath != defaultDBPath {
		t.Errorf("expected default DB path %q, got %q", defaultDBPath, cfg.DBPath)
	}

	if cfg.ServerPort != defaultServerPort {
		t.Errorf("expected default server port %d, got %d", defaultServerPort, cfg.ServerPort)
	}

	if cfg.LogLevel != defaultLogLevel {
		t.Errorf("expected default log level %q, got %q", defaultLogLevel, cfg.LogLevel)
	}

	if cfg.Environment != defaultEnvironment {
		t.Errorf("expected default environment %q, got %q", defaultEnvironment, cfg.Environment)
	}

	if cfg.ShutdownGrace != defaultShutdownGrace {
		t.Errorf("expected shutdown grace %s, got %s", defaultShutdownGrace, cfg.ShutdownGrace)
	}

	if cfg.Site != DefaultSite() {
		t.Errorf("expected default site %+v, got %+v", DefaultSite(), cfg.Site)
	}

	if cfg.RateLimit.Burst != defaultRateLimitBurst || cfg.RateLimit.RequestsPerSecond != defaultRateLimitRPS {
		t.Errorf("expected default rate limit, got %+v", cfg.RateLimit)
	}

	if cfg.SentryDSN != "" {
		t.Errorf("expected empty Sentry DSN, got %q", cfg.SentryDSN)
	}
}

func TestLoadWithExplicitValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PATH", "/tmp/wikicards.db")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SENTRY_DSN", "dsn")
	t.Setenv("ENV", "production")
	t.Setenv("SITE_NAME", "Dogopedia")
	t.Setenv("SITE_SERVER", "https://dogs.example.org/")
	t.Setenv("SITE_LOGO", "/images/logo.png")
	t.Setenv("SITE_SCRIPT_PATH", "/w/")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "7")
	t.Setenv("RATE_LIMIT_TTL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.DBPath != "/tmp/wikicards.db" {
		t.Errorf("expected DB path %q, got %q", "/tmp/wikicards.db", cfg.DBPath)
	}

	if cfg.ServerPort != 9090 {
		t.Errorf("expected server port 9090, got %d", cfg.ServerPort)
	}

	expectedSite := Site{
		Name:        "Dogopedia",
		Server:      "https://dogs.example.org",
		Logo:        "/images/logo.png",
		ScriptPath:  "/w",
		ArticlePath: defaultArticlePath,
	}
	if cfg.Site != expectedSite {
		t.Errorf("expected site %+v, got %+v", expectedSite, cfg.Site)
	}

	if cfg.RateLimit.RequestsPerSecond != 2.5 || cfg.RateLimit.Burst != 7 || cfg.RateLimit.ClientTTL != 30*time.Second {
		t.Errorf("unexpected rate limit %+v", cfg.RateLimit)
	}

	if cfg.Environment != "production" {
		t.Errorf("expected environment production, got %q", cfg.Environment)
	}
}

func TestLoadSiteFileWithEnvOverride(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "site.yaml")
	contents := "name: File Wiki\nserver: https://file.example.org\nlogo: /file-logo.png\nscript_path: /wiki-php\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing site file failed: %v", err)
	}

	t.Setenv("SITE_CONFIG_FILE", path)
	t.Setenv("SITE_NAME", "Env Wiki")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Site.Name != "Env Wiki" {
		t.Errorf("expected env to win for name, got %q", cfg.Site.Name)
	}

	if cfg.Site.Server != "https://file.example.org" {
		t.Errorf("expected server from file, got %q", cfg.Site.Server)
	}

	if cfg.Site.ScriptPath != "/wiki-php" {
		t.Errorf("expected script path from file, got %q", cfg.Site.ScriptPath)
	}
}

func TestLoadEmptyScriptPathOverridesSiteFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "site.yaml")
	if err := os.WriteFile(path, []byte("script_path: /w\n"), 0o600); err != nil {
		t.Fatalf("writing site file failed: %v", err)
	}

	t.Setenv("SITE_CONFIG_FILE", path)
	t.Setenv("SITE_SCRIPT_PATH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Site.ScriptPath != "" {
		t.Errorf("expected empty script path, got %q", cfg.Site.ScriptPath)
	}
}

func TestLoadInvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "invalid")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error for invalid port, got nil")
	}

	if !strings.Contains(err.Error(), "invalid SERVER_PORT value") {
		t.Fatalf("expected error to mention invalid SERVER_PORT value, got %v", err)
	}
}

func TestLoadRejectsRelativeServer(t *testing.T) {
	clearEnv(t)
	t.Setenv("SITE_SERVER", "dogs.example.org")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for relative site server")
	}
}

func TestSiteNormalizeRequiresArticlePathPlaceholder(t *testing.T) {
	t.Parallel()

	site := DefaultSite()
	site.ArticlePath = "/wiki/"

	if _, err := site.Normalize(); err == nil {
		t.Fatalf("expected error when article path lacks $1")
	}
}

func TestApplySiteFileOverridesLoadedSite(t *testing.T) {
	clearEnv(t)
	t.Setenv("SITE_NAME", "From env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "site.yaml")
	if err := os.WriteFile(path, []byte("name: Dogopedia\nserver: https://dogs.example.org/\nscript_path: /w\n"), 0o600); err != nil {
		t.Fatalf("writing site file: %v", err)
	}

	if err := cfg.ApplySiteFile(path); err != nil {
		t.Fatalf("ApplySiteFile returned error: %v", err)
	}

	if cfg.Site.Name != "Dogopedia" || cfg.Site.Server != "https://dogs.example.org" || cfg.Site.ScriptPath != "/w" {
		t.Fatalf("unexpected site %+v", cfg.Site)
	}
	if cfg.Site.Logo != defaultSiteLogo {
		t.Fatalf("expected logo to keep its default, got %q", cfg.Site.Logo)
	}
}
