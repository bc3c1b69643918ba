package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/MegaGrindStone/support-chat/internal/handlers"
	"github.com/MegaGrindStone/support-chat/internal/services"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	llm(systemPrompt string, logger *slog.Logger) (handlers.LLM, error)
	titleGen(systemPrompt string, logger *slog.Logger) (handlers.TitleGenerator, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type config struct {
	Port                 string         `yaml:"port"`
	SystemPrompt         string         `yaml:"systemPrompt"`
	TitleGeneratorPrompt string         `yaml:"titleGeneratorPrompt"`
	LLM                  llmConfig      `yaml:"llm"`
	Store                storeConfig    `yaml:"store"`
	Auth                 authConfig     `yaml:"auth"`
	Sessions             sessionsConfig `yaml:"sessions"`
	Chat                 chatConfig     `yaml:"chat"`
	Render               renderConfig   `yaml:"render"`
	Log                  logConfig      `yaml:"log"`
}

type storeConfig struct {
	// Driver is one of "bolt" (default), "sqlite" or "mysql".
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type authConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"tokenTTL"`
}

// sessionsConfig selects where revoked session tokens are kept. Without a Redis address they are kept in
// memory and forgotten on restart.
type sessionsConfig struct {
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
}

type chatConfig struct {
	RequireAuth *bool `yaml:"requireAuth"`
}

type renderConfig struct {
	Assistant string `yaml:"assistant"`
}

type logConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type openAIConfig struct {
	BaseLLMConfig          `yaml:",inline"`
	services.LLMParameters `yaml:",inline"`

	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	Endpoint      string `yaml:"endpoint"`
	MaxTokens     int    `yaml:"maxTokens"`
}

type openRouterConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	Endpoint      string `yaml:"endpoint"`
}

const (
	defaultPort = "8080"

	defaultSystemPrompt = `Welcome to Navability Customer Support! Navability is an Accessible Navigation App designed to help people with disabilities navigate large public spaces such as malls, airports, and other complex environments with ease using advanced AI capabilities.

Your primary goal is to provide compassionate, accurate, and efficient assistance to users experiencing issues or seeking information about Navability.

- Approach every interaction with empathy and patience, and acknowledge the user's concerns.
- Use simple, straightforward language and explain any technical term you use.
- Emphasize features that enhance accessibility and help users customize the app for their needs.
- Assist with installation, updates, and troubleshooting, and escalate complex problems to technical support.
- Offer tips on real-time guidance, indoor mapping, and voice assistance.
- Encourage users to share feedback about their experience.`
)

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port                 string         `yaml:"port"`
		SystemPrompt         string         `yaml:"systemPrompt"`
		TitleGeneratorPrompt string         `yaml:"titleGeneratorPrompt"`
		LLM                  yaml.Node      `yaml:"llm"`
		Store                storeConfig    `yaml:"store"`
		Auth                 authConfig     `yaml:"auth"`
		Sessions             sessionsConfig `yaml:"sessions"`
		Chat                 chatConfig     `yaml:"chat"`
		Render               renderConfig   `yaml:"render"`
		Log                  logConfig      `yaml:"log"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	if rawConfig.LLM.IsZero() {
		return fmt.Errorf("llm provider is required")
	}

	var base BaseLLMConfig
	if err := rawConfig.LLM.Decode(&base); err != nil {
		return err
	}
	if base.Provider == "" {
		return fmt.Errorf("llm provider is required")
	}

	var llm llmConfig
	switch base.Provider {
	case "openai":
		llm = &openAIConfig{}
	case "ollama":
		llm = &ollamaConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	case "openrouter":
		llm = &openRouterConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", base.Provider)
	}

	if err := rawConfig.LLM.Decode(llm); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.SystemPrompt = rawConfig.SystemPrompt
	c.TitleGeneratorPrompt = rawConfig.TitleGeneratorPrompt
	c.LLM = llm
	c.Store = rawConfig.Store
	c.Auth = rawConfig.Auth
	c.Sessions = rawConfig.Sessions
	c.Chat = rawConfig.Chat
	c.Render = rawConfig.Render
	c.Log = rawConfig.Log

	return nil
}

// loadConfig decodes the config file at path, fills the defaults and validates the result.
func loadConfig(path string) (config, error) {
	f, err := os.Open(path)
	if err != nil {
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()

	return parseConfig(f)
}

func parseConfig(r io.Reader) (config, error) {
	var cfg config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}

	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "bolt"
	}
	if cfg.Auth.Secret == "" {
		cfg.Auth.Secret = os.Getenv("SUPPORTCHAT_SECRET")
	}
	if cfg.Auth.Secret == "" {
		return config{}, errors.New("auth secret is required, set auth.secret or SUPPORTCHAT_SECRET")
	}

	switch cfg.Store.Driver {
	case "bolt":
	case "sqlite", "mysql":
		if cfg.Store.DSN == "" {
			return config{}, fmt.Errorf("store dsn is required for driver %s", cfg.Store.Driver)
		}
	default:
		return config{}, fmt.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}

	return cfg, nil
}

// requireAuth reports whether the chat relay needs a signed-in user. It defaults to true.
func (c chatConfig) requireAuth() bool {
	return c.RequireAuth == nil || *c.RequireAuth
}

func (l logConfig) handler(w io.Writer) (slog.Handler, error) {
	var level slog.Level
	if l.Level != "" {
		if err := level.UnmarshalText([]byte(l.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", l.Level, err)
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(l.Format) {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", l.Format)
	}
}

func (o openAIConfig) newOpenAI(systemPrompt string, logger *slog.Logger) services.OpenAI {
	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, systemPrompt, o.LLMParameters, logger)
}

func (o openAIConfig) llm(systemPrompt string, logger *slog.Logger) (handlers.LLM, error) {
	return o.newOpenAI(systemPrompt, logger), nil
}

func (o openAIConfig) titleGen(systemPrompt string, logger *slog.Logger) (handlers.TitleGenerator, error) {
	return o.newOpenAI(systemPrompt, logger), nil
}

func (o ollamaConfig) newOllama(systemPrompt string) (services.Ollama, error) {
	if o.Model == "" {
		return services.Ollama{}, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	return services.NewOllama(host, o.Model, systemPrompt)
}

func (o ollamaConfig) llm(systemPrompt string, _ *slog.Logger) (handlers.LLM, error) {
	return o.newOllama(systemPrompt)
}

func (o ollamaConfig) titleGen(systemPrompt string, _ *slog.Logger) (handlers.TitleGenerator, error) {
	return o.newOllama(systemPrompt)
}

func (a anthropicConfig) newAnthropic(systemPrompt string) (services.Anthropic, error) {
	if a.Model == "" {
		return services.Anthropic{}, fmt.Errorf("model is required")
	}
	if a.MaxTokens == 0 {
		return services.Anthropic{}, fmt.Errorf("maxTokens is required")
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return services.NewAnthropic(apiKey, a.Endpoint, a.Model, systemPrompt, a.MaxTokens), nil
}

func (a anthropicConfig) llm(systemPrompt string, _ *slog.Logger) (handlers.LLM, error) {
	return a.newAnthropic(systemPrompt)
}

func (a anthropicConfig) titleGen(systemPrompt string, _ *slog.Logger) (handlers.TitleGenerator, error) {
	return a.newAnthropic(systemPrompt)
}

func (o openRouterConfig) newOpenRouter(systemPrompt string, logger *slog.Logger) (services.OpenRouter, error) {
	if o.Model == "" {
		return services.OpenRouter{}, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	return services.NewOpenRouter(apiKey, o.Endpoint, o.Model, systemPrompt, logger), nil
}

func (o openRouterConfig) llm(systemPrompt string, logger *slog.Logger) (handlers.LLM, error) {
	return o.newOpenRouter(systemPrompt, logger)
}

func (o openRouterConfig) titleGen(systemPrompt string, logger *slog.Logger) (handlers.TitleGenerator, error) {
	return o.newOpenRouter(systemPrompt, logger)
}
