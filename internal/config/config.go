// Package config loads the plugin configuration once at startup: an
// optional .env file, then AIVOICE_* environment variables, then flags.
package config

import (
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"aivoice/internal/ipc"
	"aivoice/internal/plugin"
	"aivoice/internal/voice"
)

type Config struct {
	BusURL          string        `env:"AIVOICE_BUS_URL"          envDefault:"ws://localhost:8092/ws"`
	Shard           string        `env:"AIVOICE_SHARD"            envDefault:"ai_voice_plugin"`
	Host            string        `env:"AIVOICE_HOST"             envDefault:"host"`
	Proxy           string        `env:"AIVOICE_PROXY"`
	Reconnect       time.Duration `env:"AIVOICE_RECONNECT"        envDefault:"1s"`
	DispatchTimeout time.Duration `env:"AIVOICE_DISPATCH_TIMEOUT" envDefault:"10s"`
	SocketPath      string        `env:"AIVOICE_SOCKET"           envDefault:"/tmp/aivoice.sock"`

	Plugin     PluginConfig     `envPrefix:"AIVOICE_PLUGIN_"`
	Voice      VoiceConfig      `envPrefix:"AIVOICE_VOICE_"`
	Components ComponentsConfig `envPrefix:"AIVOICE_COMPONENTS_"`
	Advanced   AdvancedConfig   `envPrefix:"AIVOICE_ADVANCED_"`
	OpenAI     OpenAIConfig     `envPrefix:"OPENAI_"`

	aliases voice.AliasTable
}

type PluginConfig struct {
	Enabled bool `env:"ENABLED" envDefault:"true"`
}

type VoiceConfig struct {
	DefaultCharacter string `env:"DEFAULT_CHARACTER" envDefault:"温柔妹妹"`
	// AliasMap replaces the built-in table when set: "name:id,name:id".
	AliasMap string `env:"ALIAS_MAP"`
}

type ComponentsConfig struct {
	EnableAction  bool `env:"ENABLE_AI_VOICE_ACTION"  envDefault:"true"`
	EnableCommand bool `env:"ENABLE_AI_VOICE_COMMAND" envDefault:"true"`
}

type AdvancedConfig struct {
	TextFilterRegex   string `env:"TEXT_FILTER_REGEX"`
	LogLevel          string `env:"LOG_LEVEL"            envDefault:"info"`
	SendTextInPrivate bool   `env:"SEND_TEXT_IN_PRIVATE" envDefault:"true"`
}

// OpenAIConfig enables the action planner when APIKey is set.
type OpenAIConfig struct {
	APIKey  string `env:"API_KEY"`
	Model   string `env:"MODEL"    envDefault:"gpt-5-nano"`
	BaseURL string `env:"BASE_URL"`
}

var LogLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

// Load parses args with fs. Flags win over the environment, which wins over
// the .env file.
func Load(fs *cli.FlagSet, args []string) (Config, error) {
	envFile := fs.StringP("env", "e", ".env", "Env file path")
	busURL := fs.StringP("bus", "b", "", "Url of the host bus")
	proxyAddr := fs.StringP("proxy", "p", "", "Socks proxy address")
	logLevel := fs.StringP("log", "l", "", "Log level")
	socket := fs.StringP("socket", "s", "", "Control socket path")
	shard := fs.String("shard", "", "Name of this plugin on the bus")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", *envFile, err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	override := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	override("bus", &cfg.BusURL, *busURL)
	override("proxy", &cfg.Proxy, *proxyAddr)
	override("log", &cfg.Advanced.LogLevel, *logLevel)
	override("socket", &cfg.SocketPath, *socket)
	override("shard", &cfg.Shard, *shard)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.Advanced.LogLevel = strings.ToLower(strings.TrimSpace(c.Advanced.LogLevel))
	if _, ok := LogLevelMap[c.Advanced.LogLevel]; !ok {
		return fmt.Errorf("unknown log level %q", c.Advanced.LogLevel)
	}

	if c.BusURL == "" {
		return errors.New("bus url is required")
	}
	if c.SocketPath == "" {
		c.SocketPath = ipc.DefaultSocketPath
	}

	if _, err := voice.NewTextFilter(c.Advanced.TextFilterRegex); err != nil {
		return err
	}

	c.aliases = voice.DefaultAliases()
	if strings.TrimSpace(c.Voice.AliasMap) != "" {
		aliases, err := voice.ParseAliases(c.Voice.AliasMap)
		if err != nil {
			return fmt.Errorf("voice alias map: %w", err)
		}
		c.aliases = aliases
	}
	return nil
}

func (c Config) Level() log.Level {
	return LogLevelMap[c.Advanced.LogLevel]
}

func (c Config) Aliases() voice.AliasTable {
	if c.aliases == nil {
		return voice.DefaultAliases()
	}
	return c.aliases
}

func (c Config) PlannerEnabled() bool {
	return c.OpenAI.APIKey != ""
}

// Settings is the plugin's view of the configuration.
func (c Config) Settings() plugin.Settings {
	return plugin.Settings{
		Enabled:           c.Plugin.Enabled,
		EnableAction:      c.Components.EnableAction,
		EnableCommand:     c.Components.EnableCommand,
		DefaultCharacter:  c.Voice.DefaultCharacter,
		Aliases:           c.Aliases(),
		FilterPattern:     c.Advanced.TextFilterRegex,
		SendTextInPrivate: c.Advanced.SendTextInPrivate,
	}
}
