package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendGitHub = "github"
	BackendS3     = "s3"

	defaultFeedsDir = "config/feeds"
)

type Config struct {
	Server      ServerConfig
	Refresh     RefreshConfig
	Feeds       FeedsConfig
	S3          S3Config
	DBPath      string
	LogLevel    string
	LogFile     string
	Location    *time.Location
	PriceLocale string
	FeedDefs    []FeedDef
}

type ServerConfig struct {
	Port        string
	AdminSecret string
	CORSOrigins []string
	// RefreshPerMinute caps forced refreshes through the API.
	RefreshPerMinute int
}

type RefreshConfig struct {
	Hour        int
	Minute      int
	WarmOnStart bool
}

type FeedsConfig struct {
	Backend string
	Dir     string
}

type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // Optional: for R2, DO Spaces, MinIO
	AccessKeyID     string
	SecretAccessKey string
}

// FeedDef declares one remote CSV feed. Feeds are merged in ascending Order;
// ties fall back to file name.
type FeedDef struct {
	Source   string `yaml:"source"`
	Filename string `yaml:"filename"`
	Order    int    `yaml:"order"`
	Disabled bool   `yaml:"disabled"`
}

// Remote locates the feed repository. It is read fresh on every fetch so a
// rotated token or a repo switch takes effect without a restart.
type Remote struct {
	BaseURL  string
	Username string
	Repo     string
	Branch   string
	Token    string
}

// DefaultFeeds are used when no feed declarations are found on disk.
var DefaultFeeds = []FeedDef{
	{Source: "zonaprop", Filename: "propiedades_zonaprop.csv"},
	{Source: "argenprop", Filename: "propiedades_argenprop.csv"},
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:             getEnv("PORT", "8080"),
			AdminSecret:      os.Getenv("ADMIN_SECRET"),
			CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "*")),
			RefreshPerMinute: getEnvInt("REFRESH_RATE_PER_MIN", 2),
		},
		Refresh: RefreshConfig{
			Hour:        getEnvInt("REFRESH_HOUR", 16),
			Minute:      getEnvInt("REFRESH_MINUTE", 0),
			WarmOnStart: os.Getenv("WARM_ON_START") == "true",
		},
		Feeds: FeedsConfig{
			Backend: strings.ToLower(getEnv("FEEDS_BACKEND", BackendGitHub)),
			Dir:     getEnv("FEEDS_DIR", defaultFeedsDir),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Prefix:          getEnv("S3_PREFIX", "data/"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		DBPath:      getEnv("DB_PATH", "alquilercito.db"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", "alquilercito.log"),
		PriceLocale: getEnv("PRICE_LOCALE", "en"),
		Location:    time.Local,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if tz := os.Getenv("TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
		}
		cfg.Location = loc
	}

	if err := cfg.loadFeedDefs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadRemote reads the feed repository coordinates from the environment.
func LoadRemote() Remote {
	return Remote{
		BaseURL:  strings.TrimSuffix(getEnv("FEEDS_BASE_URL", "https://raw.githubusercontent.com"), "/"),
		Username: os.Getenv("GITHUB_USERNAME"),
		Repo:     os.Getenv("REPO_NAME"),
		Branch:   getEnv("BRANCH", "main"),
		Token:    os.Getenv("GITHUB_TOKEN"),
	}
}

func (c *Config) validate() error {
	if c.Refresh.Hour < 0 || c.Refresh.Hour > 23 {
		return fmt.Errorf("REFRESH_HOUR must be 0-23, got %d", c.Refresh.Hour)
	}
	if c.Refresh.Minute < 0 || c.Refresh.Minute > 59 {
		return fmt.Errorf("REFRESH_MINUTE must be 0-59, got %d", c.Refresh.Minute)
	}
	switch c.Feeds.Backend {
	case BackendGitHub:
	case BackendS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("FEEDS_BACKEND=s3 requires S3_BUCKET")
		}
	default:
		return fmt.Errorf("unknown FEEDS_BACKEND %q", c.Feeds.Backend)
	}
	return nil
}

func (c *Config) loadFeedDefs() error {
	defs, err := LoadFeedDefs(c.Feeds.Dir)
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		defs = DefaultFeeds
	}
	c.FeedDefs = defs
	return nil
}

// LoadFeedDefs reads every *.yaml file in dir, sorted by Order then file
// name. A missing directory yields no definitions.
func LoadFeedDefs(dir string) ([]FeedDef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var defs []FeedDef
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		var def FeedDef
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if def.Disabled {
			continue
		}
		if def.Filename == "" {
			return nil, fmt.Errorf("%s: filename is required", path)
		}

		defs = append(defs, def)
	}

	slices.SortStableFunc(defs, func(a, b FeedDef) int {
		return a.Order - b.Order
	})
	return defs, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
