package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"pathfinder/graph"
)

// Config is the pathfinder.toml layout.
type Config struct {
	Log     LogConfig     `toml:"log"`
	Graph   GraphConfig   `toml:"graph"`
	Search  SearchConfig  `toml:"search"`
	Cache   CacheConfig   `toml:"cache"`
	Etcd    EtcdConfig    `toml:"etcd"`
	Events  EventsConfig  `toml:"events"`
	API     APIConfig     `toml:"api"`
	GRPC    GRPCConfig    `toml:"grpc"`
	History HistoryConfig `toml:"history"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	Dir        string `toml:"dir"`
	File       string `toml:"file"`
	MaxSize    int    `toml:"max_size"` // MB
	MaxBackups int    `toml:"max_backups"`
	MaxAge     int    `toml:"max_age"` // days
	Compress   bool   `toml:"compress"`
}

type GraphConfig struct {
	// DefaultMetricValue fills metric keys a link does not carry.
	DefaultMetricValue interface{} `toml:"default_metric_value"`
	// TieBreak orders equal-cost paths: "hops" or "insertion".
	TieBreak string `toml:"tie_break"`
}

type SearchConfig struct {
	DefaultK      int `toml:"default_k"`
	MaxK          int `toml:"max_k"`
	MaxDeviations int `toml:"max_deviations"`
}

type CacheConfig struct {
	Size     int  `toml:"size"`
	Disabled bool `toml:"disabled"`
}

type EtcdConfig struct {
	Endpoints      []string      `toml:"endpoints"`
	DialTimeout    time.Duration `toml:"dial_timeout"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	TopologyKey    string        `toml:"topology_key"`
	LinkPrefix     string        `toml:"link_prefix"`
}

type EventsConfig struct {
	// Workers bounds the goroutines applying link metadata events.
	Workers int `toml:"workers"`
}

type APIConfig struct {
	ListenAddr      string        `toml:"listen_addr"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

type GRPCConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// HistoryConfig enables the event audit log (MySQL) and the per-link
// sample lists (Redis). An empty address disables that store.
type HistoryConfig struct {
	MySQLDSN        string        `toml:"mysql_dsn"`
	RedisAddr       string        `toml:"redis_addr"`
	RedisMaxIdle    int           `toml:"redis_max_idle"`
	SampleKeyPrefix string        `toml:"sample_key_prefix"`
	SampleDepth     int           `toml:"sample_depth"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load decodes path, fills every unset field with its default and validates
// the result.
func Load(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		log.Warnf("Unknown config key %s in %s", key.String(), path)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Dir == "" {
		c.Log.Dir = "./logs"
	}
	if c.Log.File == "" {
		c.Log.File = "pathfinder.log"
	}
	if c.Log.MaxSize == 0 {
		c.Log.MaxSize = 100
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 7
	}
	if c.Log.MaxAge == 0 {
		c.Log.MaxAge = 30
	}

	if c.Graph.DefaultMetricValue == nil {
		c.Graph.DefaultMetricValue = graph.DefaultMetricValue
	}
	if c.Graph.TieBreak == "" {
		c.Graph.TieBreak = "hops"
	}

	if c.Search.DefaultK == 0 {
		c.Search.DefaultK = 10
	}
	if c.Search.MaxK == 0 {
		c.Search.MaxK = 100
	}
	if c.Search.MaxDeviations == 0 {
		c.Search.MaxDeviations = graph.DefaultMaxDeviations
	}

	if c.Cache.Size == 0 {
		c.Cache.Size = 256
	}

	if len(c.Etcd.Endpoints) == 0 {
		c.Etcd.Endpoints = []string{"localhost:2379"}
	}
	if c.Etcd.DialTimeout == 0 {
		c.Etcd.DialTimeout = 5 * time.Second
	}
	if c.Etcd.RequestTimeout == 0 {
		c.Etcd.RequestTimeout = 5 * time.Second
	}
	if c.Etcd.TopologyKey == "" {
		c.Etcd.TopologyKey = "/pathfinder/topology"
	}
	if c.Etcd.LinkPrefix == "" {
		c.Etcd.LinkPrefix = "/pathfinder/links/"
	}

	if c.Events.Workers == 0 {
		c.Events.Workers = 8
	}

	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8181"
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = 15 * time.Second
	}
	if c.API.WriteTimeout == 0 {
		c.API.WriteTimeout = 30 * time.Second
	}
	if c.API.ShutdownTimeout == 0 {
		c.API.ShutdownTimeout = 10 * time.Second
	}

	if c.GRPC.ListenAddr == "" {
		c.GRPC.ListenAddr = ":50051"
	}

	if c.History.RedisMaxIdle == 0 {
		c.History.RedisMaxIdle = 4
	}
	if c.History.SampleKeyPrefix == "" {
		c.History.SampleKeyPrefix = "pathfinder:samples:"
	}
	if c.History.SampleDepth == 0 {
		c.History.SampleDepth = 10
	}
	if c.History.WriteTimeout == 0 {
		c.History.WriteTimeout = 2 * time.Second
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error

	if _, parseErr := log.ParseLevel(c.Log.Level); parseErr != nil {
		err = multierr.Append(err, fmt.Errorf("log.level: %w", parseErr))
	}
	if c.Log.MaxSize < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAge < 0 {
		err = multierr.Append(err, errors.New("log: rotation limits must not be negative"))
	}

	switch c.Graph.DefaultMetricValue.(type) {
	case int64, float64, string, bool:
	default:
		err = multierr.Append(err, fmt.Errorf("graph.default_metric_value: unsupported type %T", c.Graph.DefaultMetricValue))
	}
	if _, ok := graph.TieBreakByName(c.Graph.TieBreak); !ok {
		err = multierr.Append(err, fmt.Errorf("graph.tie_break: unknown tie-break %q", c.Graph.TieBreak))
	}

	if c.Search.DefaultK <= 0 {
		err = multierr.Append(err, fmt.Errorf("search.default_k must be positive, got %d", c.Search.DefaultK))
	}
	if c.Search.MaxK < c.Search.DefaultK {
		err = multierr.Append(err, fmt.Errorf("search.max_k %d is below search.default_k %d", c.Search.MaxK, c.Search.DefaultK))
	}
	if c.Search.MaxDeviations <= 0 {
		err = multierr.Append(err, fmt.Errorf("search.max_deviations must be positive, got %d", c.Search.MaxDeviations))
	}

	if c.Cache.Size < 0 {
		err = multierr.Append(err, fmt.Errorf("cache.size must not be negative, got %d", c.Cache.Size))
	}

	if c.Etcd.TopologyKey == c.Etcd.LinkPrefix {
		err = multierr.Append(err, errors.New("etcd.topology_key and etcd.link_prefix must differ"))
	}
	if c.Etcd.DialTimeout < 0 || c.Etcd.RequestTimeout < 0 {
		err = multierr.Append(err, errors.New("etcd: timeouts must not be negative"))
	}

	if c.Events.Workers < 0 {
		err = multierr.Append(err, fmt.Errorf("events.workers must not be negative, got %d", c.Events.Workers))
	}

	if c.History.SampleDepth < 0 || c.History.RedisMaxIdle < 0 {
		err = multierr.Append(err, errors.New("history: sample_depth and redis_max_idle must not be negative"))
	}

	return err
}

// LogLevel returns the parsed log level, info when it does not parse.
func (c *Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// CacheSize is the query cache size; zero when the cache is disabled.
func (c *Config) CacheSize() int {
	if c.Cache.Disabled {
		return 0
	}
	return c.Cache.Size
}

func (c *Config) GraphOptions() []graph.Option {
	tieBreak, _ := graph.TieBreakByName(c.Graph.TieBreak)
	return []graph.Option{
		graph.WithDefaultMetricValue(c.Graph.DefaultMetricValue),
		graph.WithTieBreak(tieBreak),
		graph.WithMaxDeviations(c.Search.MaxDeviations),
	}
}
