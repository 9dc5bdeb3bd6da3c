package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration values for the wikicards server.
type Config struct {
	DBPath         string
	ServerPort     int
	LogLevel       string
	SentryDSN      string
	Environment    string
	ShutdownGrace  time.Duration
	SiteConfigFile string
	Site           Site
	RateLimit      RateLimit
}

// Site identifies the wiki. It is read once at start-up and passed explicitly to whoever needs it.
type Site struct {
	Name        string `yaml:"name"`
	Server      string `yaml:"server"`
	Logo        string `yaml:"logo"`
	ScriptPath  string `yaml:"script_path"`
	ArticlePath string `yaml:"article_path"`
}

// RateLimit configures the per-client token bucket of the HTTP transport.
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

const (
	defaultDBPath        = "./data/wikicards.db"
	defaultServerPort    = 8080
	defaultLogLevel      = "info"
	defaultEnvironment   = "development"
	defaultShutdownGrace = 10 * time.Second

	defaultSiteName    = "Wiki"
	defaultSiteServer  = "http://localhost:8080"
	defaultSiteLogo    = "/static/logo.svg"
	defaultArticlePath = "/wiki/$1"

	defaultRateLimitRPS   = 5.0
	defaultRateLimitBurst = 20
	defaultRateLimitTTL   = 5 * time.Minute
)

// Load reads configuration values from environment variables, applying defaults where necessary.
// When SITE_CONFIG_FILE is set the YAML file is applied first and explicit SITE_* variables win.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:         getEnv("DB_PATH", defaultDBPath),
		LogLevel:       getEnv("LOG_LEVEL", defaultLogLevel),
		SentryDSN:      os.Getenv("SENTRY_DSN"),
		Environment:    getEnv("ENV", defaultEnvironment),
		ShutdownGrace:  defaultShutdownGrace,
		SiteConfigFile: os.Getenv("SITE_CONFIG_FILE"),
		Site:           DefaultSite(),
	}

	portValue := getEnv("SERVER_PORT", strconv.Itoa(defaultServerPort))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid SERVER_PORT value: %s", portValue)
	}
	cfg.ServerPort = port

	if cfg.SiteConfigFile != "" {
		fileSite, err := LoadSiteFile(cfg.SiteConfigFile)
		if err != nil {
			return nil, eris.Wrapf(err, "loading site config file: %s", cfg.SiteConfigFile)
		}
		cfg.Site = cfg.Site.merge(fileSite)
	}

	cfg.Site = cfg.Site.merge(Site{
		Name:        os.Getenv("SITE_NAME"),
		Server:      os.Getenv("SITE_SERVER"),
		Logo:        os.Getenv("SITE_LOGO"),
		ArticlePath: os.Getenv("SITE_ARTICLE_PATH"),
	})
	// An empty script path is meaningful (scripts at the server root), so a set but
	// empty SITE_SCRIPT_PATH still overrides the file.
	if scriptPath, ok := os.LookupEnv("SITE_SCRIPT_PATH"); ok {
		cfg.Site.ScriptPath = scriptPath
	}

	site, err := cfg.Site.Normalize()
	if err != nil {
		return nil, eris.Wrap(err, "validating site identity")
	}
	cfg.Site = site

	rateLimit, err := loadRateLimit()
	if err != nil {
		return nil, err
	}
	cfg.RateLimit = rateLimit

	return cfg, nil
}

// DefaultSite returns the site identity used when nothing is configured.
func DefaultSite() Site {
	return Site{
		Name:        defaultSiteName,
		Server:      defaultSiteServer,
		Logo:        defaultSiteLogo,
		ArticlePath: defaultArticlePath,
	}
}

// LoadSiteFile decodes a YAML site identity file.
func LoadSiteFile(path string) (Site, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Site{}, eris.Wrap(err, "reading file")
	}

	var site Site
	if err := yaml.Unmarshal(raw, &site); err != nil {
		return Site{}, eris.Wrap(err, "decoding YAML")
	}

	return site, nil
}

// Normalize validates the site identity and returns a copy with trailing slashes removed
// from the server origin and script path.
func (s Site) Normalize() (Site, error) {
	out := Site{
		Name:        strings.TrimSpace(s.Name),
		Server:      strings.TrimRight(strings.TrimSpace(s.Server), "/"),
		Logo:        strings.TrimSpace(s.Logo),
		ScriptPath:  strings.TrimRight(strings.TrimSpace(s.ScriptPath), "/"),
		ArticlePath: strings.TrimSpace(s.ArticlePath),
	}

	if out.Name == "" {
		return Site{}, eris.New("site name is required")
	}

	parsed, err := url.Parse(out.Server)
	if err != nil {
		return Site{}, eris.Wrapf(err, "invalid site server: %s", out.Server)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return Site{}, eris.Errorf("site server must be an absolute origin: %s", out.Server)
	}

	if out.ScriptPath != "" && !strings.HasPrefix(out.ScriptPath, "/") {
		return Site{}, eris.Errorf("site script path must start with a slash: %s", out.ScriptPath)
	}

	if out.ArticlePath == "" {
		out.ArticlePath = defaultArticlePath
	}
	if !strings.Contains(out.ArticlePath, "$1") {
		return Site{}, eris.Errorf("site article path must contain $1: %s", out.ArticlePath)
	}

	return out, nil
}

// ApplySiteFile overlays the YAML site identity at path onto c.Site. Values from the file
// win over anything already loaded.
func (c *Config) ApplySiteFile(path string) error {
	fileSite, err := LoadSiteFile(path)
	if err != nil {
		return eris.Wrapf(err, "loading site config file: %s", path)
	}

	site, err := c.Site.merge(fileSite).Normalize()
	if err != nil {
		return eris.Wrap(err, "validating site identity")
	}

	c.SiteConfigFile = path
	c.Site = site
	return nil
}

func (s Site) merge(override Site) Site {
	if override.Name != "" {
		s.Name = override.Name
	}
	if override.Server != "" {
		s.Server = override.Server
	}
	if override.Logo != "" {
		s.Logo = override.Logo
	}
	if override.ScriptPath != "" {
		s.ScriptPath = override.ScriptPath
	}
	if override.ArticlePath != "" {
		s.ArticlePath = override.ArticlePath
	}
	return s
}

func loadRateLimit() (RateLimit, error) {
	limit := RateLimit{
		RequestsPerSecond: defaultRateLimitRPS,
		Burst:             defaultRateLimitBurst,
		ClientTTL:         defaultRateLimitTTL,
	}

	if value := os.Getenv("RATE_LIMIT_RPS"); value != "" {
		rps, err := strconv.ParseFloat(value, 64)
		if err != nil || rps <= 0 {
			return RateLimit{}, eris.Errorf("invalid RATE_LIMIT_RPS value: %s", value)
		}
		limit.RequestsPerSecond = rps
	}

	if value := os.Getenv("RATE_LIMIT_BURST"); value != "" {
		burst, err := strconv.Atoi(value)
		if err != nil || burst <= 0 {
			return RateLimit{}, eris.Errorf("invalid RATE_LIMIT_BURST value: %s", value)
		}
		limit.Burst = burst
	}

	if value := os.Getenv("RATE_LIMIT_TTL"); value != "" {
		ttl, err := time.ParseDuration(value)
		if err != nil || ttl <= 0 {
			return RateLimit{}, eris.Errorf("invalid RATE_LIMIT_TTL value: %s", value)
		}
		limit.ClientTTL = ttl
	}

	return limit, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
