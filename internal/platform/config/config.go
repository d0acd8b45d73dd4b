// Package config loads process configuration from relay.yaml and RELAY_*
// environment variables. The resulting Config is immutable and handed to
// components explicitly.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	dErrors "relay/pkg/domain-errors"
	pstrings "relay/pkg/platform/strings"
)

// EnvPrefix namespaces environment overrides, e.g. RELAY_BOT_TOKEN.
const EnvPrefix = "RELAY"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Backends for edit sessions and the submission throttle.
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

type Config struct {
	Bot         BotConfig         `mapstructure:"bot"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Fanout      FanoutConfig      `mapstructure:"fanout"`
	EditSession EditSessionConfig `mapstructure:"edit_session"`
	Throttle    ThrottleConfig    `mapstructure:"throttle"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Audit       AuditConfig       `mapstructure:"audit"`
	Log         LogConfig         `mapstructure:"log"`
}

// BotConfig holds the transport credentials and the moderator allow-list.
type BotConfig struct {
	Token            string   `mapstructure:"token"`
	PublishChannelID string   `mapstructure:"publish_channel_id"`
	Moderators       []string `mapstructure:"moderators"`
	Locale           string   `mapstructure:"locale"`
}

type StorageConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// FanoutConfig bounds the number of in-flight transport calls per
// scatter (delivery to moderators, invalidation of copies).
type FanoutConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type EditSessionConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// ThrottleConfig limits submissions per submitter. Limit 0 disables it.
type ThrottleConfig struct {
	Backend string        `mapstructure:"backend"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// AuditConfig selects audit sinks. Events always go to the log; Kafka and
// the database are optional.
type AuditConfig struct {
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
	Persist      bool     `mapstructure:"persist"`
	HashKey      string   `mapstructure:"hash_key"`
	Buffer       int      `mapstructure:"buffer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"bot.token":                 "",
	"bot.publish_channel_id":    "",
	"bot.moderators":            []string{},
	"bot.locale":                "en",
	"storage.driver":            DriverSQLite,
	"storage.dsn":               "file:relay.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
	"storage.max_open_conns":    10,
	"storage.conn_max_lifetime": time.Hour,
	"redis.url":                 "",
	"redis.pool_size":           10,
	"redis.min_idle_conns":      2,
	"redis.dial_timeout":        5 * time.Second,
	"redis.read_timeout":        3 * time.Second,
	"redis.write_timeout":       3 * time.Second,
	"fanout.concurrency":        8,
	"edit_session.backend":      SessionBackendMemory,
	"edit_session.ttl":          15 * time.Minute,
	"throttle.backend":          SessionBackendMemory,
	"throttle.limit":            5,
	"throttle.window":           10 * time.Minute,
	"http.addr":                 ":9090",
	"audit.kafka_brokers":       []string{},
	"audit.kafka_topic":         "relay.audit",
	"audit.persist":             true,
	"audit.hash_key":            "",
	"audit.buffer":              256,
	"log.level":                 "info",
	"log.format":                "json",
}

// Load reads configuration. path may be empty, in which case relay.yaml is
// looked up in the working directory and a missing file is not an error.
// Only the storage section is validated; serve calls Validate for the rest.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("relay")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "decode config")
	}
	cfg.normalize()
	if err := cfg.ValidateStorage(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize splits comma-separated list values that arrive as a single
// element from environment variables.
func (c *Config) normalize() {
	c.Bot.Moderators = pstrings.NormalizeIDs(splitList(c.Bot.Moderators))
	c.Audit.KafkaBrokers = pstrings.NormalizeIDs(splitList(c.Audit.KafkaBrokers))
	c.Bot.Token = strings.TrimSpace(c.Bot.Token)
	c.Bot.PublishChannelID = strings.TrimSpace(c.Bot.PublishChannelID)
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.EditSession.Backend = strings.ToLower(strings.TrimSpace(c.EditSession.Backend))
	c.Throttle.Backend = strings.ToLower(strings.TrimSpace(c.Throttle.Backend))
}

func splitList(in []string) []string {
	var out []string
	for _, v := range in {
		out = append(out, strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })...)
	}
	return out
}

// Validate reports the first configuration problem as a configuration error.
func (c *Config) Validate() error {
	if err := c.ValidateStorage(); err != nil {
		return err
	}
	switch {
	case c.Bot.Token == "":
		return dErrors.New(dErrors.CodeConfiguration, "bot.token is required")
	case c.Bot.PublishChannelID == "":
		return dErrors.New(dErrors.CodeConfiguration, "bot.publish_channel_id is required")
	case len(c.Bot.Moderators) == 0:
		return dErrors.New(dErrors.CodeConfiguration, "bot.moderators must list at least one moderator")
	case c.Fanout.Concurrency < 1:
		return dErrors.New(dErrors.CodeConfiguration, "fanout.concurrency must be positive")
	case c.EditSession.TTL <= 0:
		return dErrors.New(dErrors.CodeConfiguration, "edit_session.ttl must be positive")
	}
	if err := c.validateBackend("edit_session.backend", c.EditSession.Backend); err != nil {
		return err
	}
	if c.Throttle.Limit < 0 {
		return dErrors.New(dErrors.CodeConfiguration, "throttle.limit must not be negative")
	}
	if c.Throttle.Limit > 0 {
		if c.Throttle.Window <= 0 {
			return dErrors.New(dErrors.CodeConfiguration, "throttle.window must be positive")
		}
		if err := c.validateBackend("throttle.backend", c.Throttle.Backend); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateBackend(name, backend string) error {
	switch backend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if c.Redis.URL == "" {
			return dErrors.New(dErrors.CodeConfiguration, name+"=redis requires redis.url")
		}
	default:
		return dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("unknown %s %q", name, backend))
	}
	return nil
}

// NeedsRedis reports whether any component is configured to use Redis.
func (c *Config) NeedsRedis() bool {
	return c.EditSession.Backend == SessionBackendRedis ||
		(c.Throttle.Limit > 0 && c.Throttle.Backend == SessionBackendRedis)
}

// ValidateStorage checks only the storage section. CLI maintenance commands
// (migrate, settings, ticket) need a database but no bot credentials.
func (c *Config) ValidateStorage() error {
	if !slices.Contains([]string{DriverMemory, DriverSQLite, DriverPostgres}, c.Storage.Driver) {
		return dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("unknown storage.driver %q", c.Storage.Driver))
	}
	if c.Storage.Driver != DriverMemory && c.Storage.DSN == "" {
		return dErrors.New(dErrors.CodeConfiguration, "storage.dsn is required")
	}
	return nil
}

// ModeratorSet returns the allow-list as a lookup set.
func (c *Config) ModeratorSet() Moderators {
	return NewModerators(c.Bot.Moderators)
}

// Moderators is the static allow-list of moderator user IDs, in configured
// order.
type Moderators struct {
	ids []string
	set map[string]struct{}
}

func NewModerators(ids []string) Moderators {
	ids = pstrings.NormalizeIDs(ids)
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return Moderators{ids: ids, set: set}
}

func (m Moderators) Contains(userID string) bool {
	_, ok := m.set[userID]
	return ok
}

// IDs returns a copy of the allow-list.
func (m Moderators) IDs() []string {
	return slices.Clone(m.ids)
}

func (m Moderators) Len() int {
	return len(m.ids)
}
