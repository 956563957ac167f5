package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is the full service configuration. Every key can be overridden
// through the environment with the HTSIM_ prefix and underscores in place of
// dots, e.g. HTSIM_ENGINE_NOTIONAL=25.
type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Server   ServerConfig   `mapstructure:"server"`
	Market   MarketConfig   `mapstructure:"market"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Store    StoreConfig    `mapstructure:"store"`
	Rowstore RowstoreConfig `mapstructure:"rowstore"`
}

type ServerConfig struct {
	Listen string `mapstructure:"listen"`
	Mode   string `mapstructure:"mode"`
}

type MarketConfig struct {
	Symbol     string `mapstructure:"symbol"`
	FetchLimit int    `mapstructure:"fetch_limit"`
}

type EngineConfig struct {
	BaseSeconds    int     `mapstructure:"base_seconds"`
	CycleSeconds   int     `mapstructure:"cycle_seconds"`
	Notional       float64 `mapstructure:"notional"`
	FeeRate        float64 `mapstructure:"fee_rate"`
	BufferCapacity int     `mapstructure:"buffer_capacity"`
	MockSeed       int64   `mapstructure:"mock_seed"`
}

type StoreConfig struct {
	CandleCacheDir string `mapstructure:"candle_cache_dir"`
	MirrorPath     string `mapstructure:"mirror_path"`
}

// RowstoreConfig points at the remote row store used by the batch prefill
// job. Left empty, the prefill binary refuses to start; the live service
// never needs it.
type RowstoreConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	PriceTable        string  `mapstructure:"price_table"`
	SimTable          string  `mapstructure:"sim_table"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("server.listen", ":8021")
	v.SetDefault("server.mode", "release")
	v.SetDefault("market.symbol", "BTCUSDT")
	v.SetDefault("market.fetch_limit", 1000)
	v.SetDefault("engine.base_seconds", 15)
	v.SetDefault("engine.cycle_seconds", 600)
	v.SetDefault("engine.notional", 10.0)
	v.SetDefault("engine.fee_rate", 0.0004)
	v.SetDefault("engine.buffer_capacity", 10000)
	v.SetDefault("engine.mock_seed", 0)
	v.SetDefault("store.candle_cache_dir", "data/candles")
	v.SetDefault("store.mirror_path", "data/simulations.db")
	v.SetDefault("rowstore.price_table", "price_15s")
	v.SetDefault("rowstore.sim_table", "simulations_10m")
	v.SetDefault("rowstore.requests_per_second", 4)
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("HTSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
		}
	}
	return v, nil
}

// Load reads the optional YAML file at path, layers environment overrides on
// top, and validates the result. An empty path loads defaults plus
// environment only.
func Load(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(c *Config) error {
	if c.Engine.BaseSeconds <= 0 {
		return fmt.Errorf("engine.base_seconds must be > 0")
	}
	if c.Engine.CycleSeconds < c.Engine.BaseSeconds {
		return fmt.Errorf("engine.cycle_seconds must be >= engine.base_seconds")
	}
	if c.Engine.Notional <= 0 {
		return fmt.Errorf("engine.notional must be > 0")
	}
	if c.Engine.FeeRate < 0 {
		return fmt.Errorf("engine.fee_rate must be >= 0")
	}
	if c.Engine.BufferCapacity < 1 {
		return fmt.Errorf("engine.buffer_capacity must be >= 1")
	}
	if strings.TrimSpace(c.Market.Symbol) == "" {
		return fmt.Errorf("market.symbol cannot be empty")
	}
	if c.Market.FetchLimit <= 0 {
		return fmt.Errorf("market.fetch_limit must be > 0")
	}
	if strings.TrimSpace(c.Server.Listen) == "" {
		return fmt.Errorf("server.listen cannot be empty")
	}
	if c.Rowstore.RequestsPerSecond <= 0 {
		return fmt.Errorf("rowstore.requests_per_second must be > 0")
	}
	return nil
}
