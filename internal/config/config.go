package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DINEPICK_HTTP_PORT.
const EnvPrefix = "DINEPICK"

// ARCHITECTURAL DISCOVERY: Configuration layer serves as system-wide settings coordinator
// Sections are values, not pointers, so a partially written file can never
// leave a nil section behind
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http" json:"http"`
	WebSocket WebSocketConfig `mapstructure:"websocket" json:"websocket"`
	Session   SessionConfig   `mapstructure:"session" json:"session"`
	Catalog   CatalogConfig   `mapstructure:"catalog" json:"catalog"`
	Log       LogConfig       `mapstructure:"log" json:"log"`
}

// HTTPConfig configures the request/response server.
type HTTPConfig struct {
	Host            string        `mapstructure:"host" json:"host"`
	Port            int           `mapstructure:"port" json:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
	// PublicURL is the externally visible base used in join links.
	PublicURL      string `mapstructure:"public_url" json:"public_url"`
	AllowedOrigins string `mapstructure:"allowed_origins" json:"allowed_origins"`
	Profile        bool   `mapstructure:"profile" json:"profile"`
}

// FUNCTIONAL DISCOVERY: WebSocket configuration keeps the 30s heartbeat and
// 100 message outbound queue that phones on flaky networks tolerate
type WebSocketConfig struct {
	PingInterval    time.Duration `mapstructure:"ping_interval" json:"ping_interval"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	BufferSize      int           `mapstructure:"buffer_size" json:"buffer_size"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes" json:"max_message_bytes"`
	EventsPerMinute int           `mapstructure:"events_per_minute" json:"events_per_minute"`
}

// SessionConfig bounds session size and lifetime.
type SessionConfig struct {
	MaxParticipants      int           `mapstructure:"max_participants" json:"max_participants"`
	MaxDisplayNameLength int           `mapstructure:"max_display_name_length" json:"max_display_name_length"`
	InactivityTimeout    time.Duration `mapstructure:"inactivity_timeout" json:"inactivity_timeout"`
	EmptyGrace           time.Duration `mapstructure:"empty_grace" json:"empty_grace"`
	SweepInterval        time.Duration `mapstructure:"sweep_interval" json:"sweep_interval"`
	StrictVoting         bool          `mapstructure:"strict_voting" json:"strict_voting"`
}

// CatalogConfig selects the candidate provider.
type CatalogConfig struct {
	Driver         string        `mapstructure:"driver" json:"driver"`
	Path           string        `mapstructure:"path" json:"path"`
	MaxConnections int           `mapstructure:"max_connections" json:"max_connections"`
	CacheSize      int           `mapstructure:"cache_size" json:"cache_size"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl" json:"cache_ttl"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  "*",
		},
		WebSocket: WebSocketConfig{
			PingInterval:    30 * time.Second,
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    5 * time.Second,
			BufferSize:      100,
			MaxMessageBytes: 64 << 10,
			EventsPerMinute: 100,
		},
		Session: SessionConfig{
			MaxParticipants:      10,
			MaxDisplayNameLength: 50,
			InactivityTimeout:    5 * time.Minute,
			EmptyGrace:           time.Minute,
			SweepInterval:        time.Minute,
			StrictVoting:         true,
		},
		Catalog: CatalogConfig{
			Driver:         "static",
			Path:           "./data/dinepick.db",
			MaxConnections: 10,
			CacheSize:      128,
			CacheTTL:       5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	check(c.HTTP.Host != "", "HTTP host cannot be empty")
	check(c.HTTP.Port > 0 && c.HTTP.Port <= 65535, "HTTP port must be between 1 and 65535")
	check(c.HTTP.ReadTimeout > 0, "HTTP read timeout must be positive")
	check(c.HTTP.WriteTimeout > 0, "HTTP write timeout must be positive")
	check(c.HTTP.ShutdownTimeout > 0, "HTTP shutdown timeout must be positive")
	if c.HTTP.PublicURL != "" {
		u, err := url.Parse(c.HTTP.PublicURL)
		check(err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "",
			"HTTP public URL must be an absolute http(s) URL")
	}

	check(c.WebSocket.PingInterval > 0, "WebSocket ping interval must be positive")
	check(c.WebSocket.ReadTimeout > c.WebSocket.PingInterval, "WebSocket read timeout must exceed the ping interval")
	check(c.WebSocket.WriteTimeout > 0, "WebSocket write timeout must be positive")
	check(c.WebSocket.BufferSize > 0, "WebSocket buffer size must be positive")
	check(c.WebSocket.MaxMessageBytes > 0, "WebSocket max message size must be positive")
	check(c.WebSocket.EventsPerMinute > 0, "WebSocket events per minute must be positive")

	check(c.Session.MaxParticipants > 0, "session max participants must be positive")
	check(c.Session.MaxDisplayNameLength > 0, "session max display name length must be positive")
	check(c.Session.InactivityTimeout > 0, "session inactivity timeout must be positive")
	check(c.Session.EmptyGrace > 0, "session empty grace must be positive")
	check(c.Session.SweepInterval > 0, "session sweep interval must be positive")

	switch c.Catalog.Driver {
	case "static":
	case "sqlite":
		check(c.Catalog.Path != "", "catalog path cannot be empty for the sqlite driver")
		check(c.Catalog.MaxConnections > 0, "catalog max connections must be positive")
	default:
		errs = append(errs, fmt.Errorf("unknown catalog driver %q", c.Catalog.Driver))
	}
	check(c.Catalog.CacheSize > 0, "catalog cache size must be positive")
	check(c.Catalog.CacheTTL > 0, "catalog cache TTL must be positive")

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Address returns the listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"bind":               "http.host",
	"port":               "http.port",
	"public-url":         "http.public_url",
	"profile":            "http.profile",
	"log-level":          "log.level",
	"log-format":         "log.format",
	"catalog-driver":     "catalog.driver",
	"catalog-path":       "catalog.path",
	"inactivity-timeout": "session.inactivity_timeout",
	"sweep-interval":     "session.sweep_interval",
	"strict-voting":      "session.strict_voting",
}

// RegisterFlags defines the configuration flags on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()
	fs.StringP("bind", "b", d.HTTP.Host, "address to bind to (env: DINEPICK_HTTP_HOST)")
	fs.IntP("port", "p", d.HTTP.Port, "port to listen on (env: DINEPICK_HTTP_PORT)")
	fs.String("public-url", d.HTTP.PublicURL, "externally visible base URL for join links (env: DINEPICK_HTTP_PUBLIC_URL)")
	fs.Bool("profile", d.HTTP.Profile, "register net/http/pprof handlers (env: DINEPICK_HTTP_PROFILE)")
	fs.String("log-level", d.Log.Level, "debug, info, warn or error (env: DINEPICK_LOG_LEVEL)")
	fs.String("log-format", d.Log.Format, "text or json (env: DINEPICK_LOG_FORMAT)")
	fs.String("catalog-driver", d.Catalog.Driver, "static or sqlite (env: DINEPICK_CATALOG_DRIVER)")
	fs.String("catalog-path", d.Catalog.Path, "sqlite catalog file (env: DINEPICK_CATALOG_PATH)")
	fs.Duration("inactivity-timeout", d.Session.InactivityTimeout, "time before idle sessions are ended (env: DINEPICK_SESSION_INACTIVITY_TIMEOUT)")
	fs.Duration("sweep-interval", d.Session.SweepInterval, "how often idle sessions are swept (env: DINEPICK_SESSION_SWEEP_INTERVAL)")
	fs.Bool("strict-voting", d.Session.StrictVoting, "reject unknown candidates and ignore repeat votes (env: DINEPICK_SESSION_STRICT_VOTING)")
}

// Load resolves the configuration. Precedence, highest first: changed flags,
// DINEPICK_ environment variables, the config file, defaults. file and flags
// may be empty.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()

	defaults := make(map[string]any)
	if err := mapstructure.Decode(cfg, &defaults); err != nil {
		return nil, fmt.Errorf("mapstructure: %w", err)
	}
	setDefaults(v, "", defaults)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config from file %s: %w", file, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every leaf of m so environment lookups know the key.
func setDefaults(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			setDefaults(v, key, nested)
			continue
		}
		v.SetDefault(key, val)
	}
}

// LoadDotEnv loads environment files, skipping ones that do not exist.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}
