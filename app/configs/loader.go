package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"GoInlineAI/app/backends"
	"GoInlineAI/app/clients"
)

const (
	DefaultPath        = "oi-config.json"
	DefaultBackend     = "openai"
	DefaultModel       = "gpt-3.5-turbo"
	DefaultConcurrency = 4
	DefaultDebounce    = 100 * time.Millisecond
	DefaultTimeout     = 120 * time.Second
)

// Config is the persisted watcher configuration. JSON is a subset of YAML so
// both oi-config.json and a .yaml file decode here.
type Config struct {
	AIBackend      string           `yaml:"aiBackend" validate:"required,oneof=openai huggingface local gemini"`
	AIModel        string           `yaml:"aiModel"`
	APIKey         string           `yaml:"apiKey"`
	Endpoint       string           `yaml:"endpoint" validate:"omitempty,url"`
	Organization   string           `yaml:"organization"`
	Ignore         []string         `yaml:"ignore"`
	Concurrency    int              `yaml:"concurrency" validate:"gte=1,lte=64"`
	Debounce       time.Duration    `yaml:"debounce" validate:"gte=0"`
	Timeout        time.Duration    `yaml:"timeout" validate:"gt=0"`
	Retries        int              `yaml:"retries" validate:"gte=0,lte=10"`
	InsertNewlines bool             `yaml:"insertNewlines"`
	Journal        string           `yaml:"journal"`
	Clients        []clients.Config `yaml:"clients,omitempty" validate:"dive"`
}

// LoadConfig reads path, expands environment references and fills anything
// left empty from the environment and the built-in defaults. A missing file
// is not an error: the defaults alone describe a usable watcher.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("⚠️ Could not load .env: %v\n", err)
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Printf("ℹ️ No config at %s, using defaults\n", path)
	case err != nil:
		return nil, fmt.Errorf("read configs file: %w", err)
	default:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.AIBackend == "" {
		c.AIBackend = DefaultBackend
	}
	if c.AIModel == "" && c.AIBackend == DefaultBackend {
		c.AIModel = DefaultModel
	}
	if c.APIKey == "" {
		c.APIKey = apiKeyFromEnv(c.AIBackend)
	}
	if c.Organization == "" && c.AIBackend == string(backends.KindOpenAI) {
		c.Organization = os.Getenv("OPENAI_ORG_ID")
	}
	if c.Endpoint == "" && c.AIBackend == string(backends.KindLocal) {
		c.Endpoint = os.Getenv("LOCAL_LLM_URL")
	}
	if c.Journal == "" {
		c.Journal = os.Getenv("DB_PATH")
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Debounce == 0 {
		c.Debounce = DefaultDebounce
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

func apiKeyFromEnv(backend string) string {
	switch backends.Kind(backend) {
	case backends.KindOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case backends.KindHuggingFace:
		return os.Getenv("HUGGINGFACE_API_TOKEN")
	case backends.KindGemini:
		return os.Getenv("GEMINI_API_KEY")
	default:
		return ""
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed on %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Descriptor is the backend selection handed to the watcher.
func (c *Config) Descriptor() backends.Descriptor {
	return backends.Descriptor{
		Kind:         backends.Kind(c.AIBackend),
		Model:        c.AIModel,
		Endpoint:     c.Endpoint,
		APIKey:       c.APIKey,
		Organization: c.Organization,
		Timeout:      c.Timeout,
	}
}
