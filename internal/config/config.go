// Package config loads arenad's runtime configuration: defaults, overlaid
// by an optional YAML file, overlaid by ARENA_-prefixed environment
// variables.
package config

import (
	"errors"
	"strings"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/spf13/viper"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
)

// EnvPrefix namespaces environment overrides, e.g. ARENA_SERVER_ADDR.
const EnvPrefix = "ARENA"

// Config is everything arenad needs to come up.
type Config struct {
	Server     Server     `mapstructure:"server"`
	Log        Log        `mapstructure:"log"`
	Ledger     Ledger     `mapstructure:"ledger"`
	Session    Session    `mapstructure:"session"`
	Jobs       Jobs       `mapstructure:"jobs"`
	Betting    Betting    `mapstructure:"betting"`
	Tournament Tournament `mapstructure:"tournament"`
	Challenge  Challenge  `mapstructure:"challenge"`
	Replay     Replay     `mapstructure:"replay"`
}

type Server struct {
	Addr string `mapstructure:"addr"`
}

type Log struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
}

type Ledger struct {
	// Endpoint is the CometBFT RPC address of the arena chain. The literal
	// "memory" runs against the in-process ledger instead, for local
	// development without a chain.
	Endpoint string `mapstructure:"endpoint"`

	// Signer is the operator address the chain expects on arena txs.
	Signer string `mapstructure:"signer"`

	// KeyFile holds the operator's hex-encoded ed25519 seed.
	KeyFile string `mapstructure:"key_file"`

	Retry Retry `mapstructure:"retry"`
}

type Retry struct {
	Attempts int           `mapstructure:"attempts"`
	Base     time.Duration `mapstructure:"base"`
	Cap      time.Duration `mapstructure:"cap"`
}

type Session struct {
	// TickRate is the driver cadence in ticks per second.
	TickRate int `mapstructure:"tick_rate"`
}

type Jobs struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

type Betting struct {
	OddsInterval time.Duration `mapstructure:"odds_interval"`
}

type Tournament struct {
	RoundTimeout  time.Duration `mapstructure:"round_timeout"`
	BettingWindow time.Duration `mapstructure:"betting_window"`
}

type Challenge struct {
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	GameTimeout    time.Duration `mapstructure:"game_timeout"`
	ReconnectGrace time.Duration `mapstructure:"reconnect_grace"`
	Countdown      time.Duration `mapstructure:"countdown"`
	BettingWindow  time.Duration `mapstructure:"betting_window"`
}

type Replay struct {
	// PostgresDSN enables the Postgres replay archive. Empty keeps replays
	// in process memory.
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// Default is the configuration arenad runs with when nothing overrides it.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080"},
		Log:    Log{Level: "info"},
		Ledger: Ledger{
			Endpoint: "memory",
			Retry:    Retry{Attempts: 5, Base: time.Second, Cap: 30 * time.Second},
		},
		Session: Session{TickRate: 60},
		Jobs:    Jobs{Workers: 4, QueueSize: 64},
		Betting: Betting{OddsInterval: time.Second},
		Tournament: Tournament{
			RoundTimeout:  30 * time.Minute,
			BettingWindow: 45 * time.Second,
		},
		Challenge: Challenge{
			MaxConcurrent:  10,
			ConnectTimeout: 60 * time.Second,
			GameTimeout:    5 * time.Minute,
			ReconnectGrace: 10 * time.Second,
			Countdown:      3 * time.Second,
			BettingWindow:  30 * time.Second,
		},
		Replay: Replay{},
	}
}

// Load builds the effective configuration. A non-empty path must name an
// existing YAML file; an empty path searches the usual locations and falls
// back to defaults when nothing is found.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "config %s: %v", path, err)
		}
	} else {
		v.SetConfigName("arenad")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.arena")
		v.AddConfigPath("/etc/arena")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "config: %v", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("ledger.endpoint", d.Ledger.Endpoint)
	v.SetDefault("ledger.signer", d.Ledger.Signer)
	v.SetDefault("ledger.key_file", d.Ledger.KeyFile)
	v.SetDefault("ledger.retry.attempts", d.Ledger.Retry.Attempts)
	v.SetDefault("ledger.retry.base", d.Ledger.Retry.Base)
	v.SetDefault("ledger.retry.cap", d.Ledger.Retry.Cap)
	v.SetDefault("session.tick_rate", d.Session.TickRate)
	v.SetDefault("jobs.workers", d.Jobs.Workers)
	v.SetDefault("jobs.queue_size", d.Jobs.QueueSize)
	v.SetDefault("betting.odds_interval", d.Betting.OddsInterval)
	v.SetDefault("tournament.round_timeout", d.Tournament.RoundTimeout)
	v.SetDefault("tournament.betting_window", d.Tournament.BettingWindow)
	v.SetDefault("challenge.max_concurrent", d.Challenge.MaxConcurrent)
	v.SetDefault("challenge.connect_timeout", d.Challenge.ConnectTimeout)
	v.SetDefault("challenge.game_timeout", d.Challenge.GameTimeout)
	v.SetDefault("challenge.reconnect_grace", d.Challenge.ReconnectGrace)
	v.SetDefault("challenge.countdown", d.Challenge.Countdown)
	v.SetDefault("challenge.betting_window", d.Challenge.BettingWindow)
	v.SetDefault("replay.postgres_dsn", d.Replay.PostgresDSN)
}

// Validate rejects configurations arenad cannot run with.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errorsmod.Wrap(arenaerr.ErrInvalidArgument, "server.addr is empty")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "log.level %q", c.Log.Level)
	}
	if c.Ledger.Endpoint == "" {
		return errorsmod.Wrap(arenaerr.ErrInvalidArgument, "ledger.endpoint is empty")
	}
	if c.Ledger.Endpoint != "memory" {
		if c.Ledger.Signer == "" {
			return errorsmod.Wrap(arenaerr.ErrInvalidArgument, "ledger.signer required with a chain endpoint")
		}
		if c.Ledger.KeyFile == "" {
			return errorsmod.Wrap(arenaerr.ErrInvalidArgument, "ledger.key_file required with a chain endpoint")
		}
	}
	if c.Ledger.Retry.Attempts < 1 {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "ledger.retry.attempts %d", c.Ledger.Retry.Attempts)
	}
	if c.Ledger.Retry.Base <= 0 || c.Ledger.Retry.Cap < c.Ledger.Retry.Base {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "ledger.retry base %s cap %s", c.Ledger.Retry.Base, c.Ledger.Retry.Cap)
	}
	if c.Session.TickRate < 1 || c.Session.TickRate > 240 {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "session.tick_rate %d outside [1,240]", c.Session.TickRate)
	}
	if c.Jobs.Workers < 1 {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "jobs.workers %d", c.Jobs.Workers)
	}
	if c.Jobs.QueueSize < 1 {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "jobs.queue_size %d", c.Jobs.QueueSize)
	}
	if c.Betting.OddsInterval <= 0 {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "betting.odds_interval %s", c.Betting.OddsInterval)
	}
	if c.Tournament.RoundTimeout <= 0 {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "tournament.round_timeout %s", c.Tournament.RoundTimeout)
	}
	if c.Tournament.BettingWindow < 0 {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "tournament.betting_window %s", c.Tournament.BettingWindow)
	}
	if c.Challenge.MaxConcurrent < 1 {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "challenge.max_concurrent %d", c.Challenge.MaxConcurrent)
	}
	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"challenge.connect_timeout", c.Challenge.ConnectTimeout},
		{"challenge.game_timeout", c.Challenge.GameTimeout},
		{"challenge.reconnect_grace", c.Challenge.ReconnectGrace},
		{"challenge.countdown", c.Challenge.Countdown},
		{"challenge.betting_window", c.Challenge.BettingWindow},
	} {
		if d.val <= 0 {
			return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "%s %s", d.name, d.val)
		}
	}
	return nil
}

// TickPeriod converts the configured rate to the driver period.
func (s Session) TickPeriod() time.Duration {
	return time.Second / time.Duration(s.TickRate)
}
