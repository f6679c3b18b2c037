package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Outlets    Outlets    `yaml:"outlets"`
	Generation Generation `yaml:"generation"`
	Fusion     Fusion     `yaml:"fusion"`
	Storage    Storage    `yaml:"storage"`
	Server     Server     `yaml:"server"`
}

type Outlets struct {
	Limit     int    `yaml:"limit"`
	Primary   Outlet `yaml:"primary"`
	Secondary Outlet `yaml:"secondary"`
}

type Outlet struct {
	Name            string `yaml:"name"`
	FrontPage       string `yaml:"front_page"`
	ListingSelector string `yaml:"listing_selector"`
	TitleSelector   string `yaml:"title_selector"`
	BodySelector    string `yaml:"body_selector"`
	FeedURL         string `yaml:"feed_url"`
	Mode            string `yaml:"mode"`
}

type Generation struct {
	Provider        string `yaml:"provider"`
	Model           string `yaml:"model"`
	OllamaURL       string `yaml:"ollama_url"`
	OpenAIModel     string `yaml:"openai_model"`
	APIKeyEnv       string `yaml:"api_key_env"`
	MaxTokens       int    `yaml:"max_tokens"`
	MaxArticleChars int    `yaml:"max_article_chars"`
}

type Fusion struct {
	TagPolicy string `yaml:"tag_policy"`
}

type Storage struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSNEnv string `yaml:"dsn_env"`
	Dedup  string `yaml:"dedup"`
}

type Server struct {
	Port int `yaml:"port"`
}

// ConfigDir returns the XDG config directory for newsfuse.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "newsfuse")
}

// DataDir returns the XDG data directory for newsfuse.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "newsfuse")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/newsfuse/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'newsfuse init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Outlets: Outlets{
			Limit: 5,
			Primary: Outlet{
				Name:            "CNN",
				FrontPage:       "https://edition.cnn.com/world",
				ListingSelector: ".container__link--type-article",
				TitleSelector:   ".container__headline-text",
				BodySelector:    ".article__content p",
				Mode:            "page",
			},
			Secondary: Outlet{
				Name:            "RT",
				FrontPage:       "https://www.rt.com/",
				ListingSelector: "li.card-list__item strong.card__header a",
				BodySelector:    "div.article__text p",
				Mode:            "page",
			},
		},
		Generation: Generation{
			Provider:        "openai",
			Model:           "qwen2.5:7b",
			OllamaURL:       "http://localhost:11434",
			OpenAIModel:     "gpt-4o-mini",
			APIKeyEnv:       "OPENAI_API_KEY",
			MaxTokens:       1024,
			MaxArticleChars: 12000,
		},
		Fusion:  Fusion{TagPolicy: "allow"},
		Storage: Storage{Driver: "sqlite", DSNEnv: "DATABASE_URL", Dedup: "insert"},
		Server:  Server{Port: 8000},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// SQLitePath returns the effective SQLite database path from config or
// the XDG default.
func (c *Config) SQLitePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return filepath.Join(DataDir(), "newsfuse.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
