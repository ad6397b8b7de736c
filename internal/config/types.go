package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete pipetop.yaml configuration.
type Config struct {
	API       APIConfig       `yaml:"api" mapstructure:"api"`
	Dashboard DashboardConfig `yaml:"dashboard" mapstructure:"dashboard"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// APIConfig locates the pipeline API and controls how it is queried.
type APIConfig struct {
	// Address is host:port of the API; the endpoint is http://<address>/graphql.
	Address string `yaml:"address" mapstructure:"address"`

	// URL overrides Address with a full endpoint URL.
	URL string `yaml:"url" mapstructure:"url"`

	// Transport is "poll" or "subscribe".
	Transport string `yaml:"transport" mapstructure:"transport"`

	// Timeout bounds the startup queries and every refresh.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// LostAfter is how many refreshes in a row must fail before the
	// dashboard shows the connection as lost.
	LostAfter int `yaml:"lost_after" mapstructure:"lost_after"`
}

// DashboardConfig controls rendering.
type DashboardConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval" mapstructure:"refresh_interval"`
	TickInterval    time.Duration `yaml:"tick_interval" mapstructure:"tick_interval"`

	// Renderer is "tea" or "tcell".
	Renderer string `yaml:"renderer" mapstructure:"renderer"`

	// Sort is the initial sort: topology, name, throughput or errors.
	Sort string `yaml:"sort" mapstructure:"sort"`

	NoColor   bool `yaml:"no_color" mapstructure:"no_color"`
	TrendSize int  `yaml:"trend_size" mapstructure:"trend_size"`
}

// LogConfig controls the session log. The terminal belongs to the UI, so
// logs only ever go to a file.
type LogConfig struct {
	File  string `yaml:"file" mapstructure:"file"`
	Debug bool   `yaml:"debug" mapstructure:"debug"`
}

// Default values.
const (
	DefaultAddress         = "127.0.0.1:8686"
	DefaultTransport       = TransportPoll
	DefaultTimeout         = 5 * time.Second
	DefaultLostAfter       = 3
	DefaultRefreshInterval = time.Second
	DefaultTickInterval    = 250 * time.Millisecond
	DefaultRenderer        = RendererTea
	DefaultSort            = "topology"
	DefaultTrendSize       = 32
)

// Valid enum values.
const (
	TransportPoll      = "poll"
	TransportSubscribe = "subscribe"
	RendererTea        = "tea"
	RendererTcell      = "tcell"
)

var (
	// Transports lists valid api.transport values.
	Transports = []string{TransportPoll, TransportSubscribe}
	// Renderers lists valid dashboard.renderer values.
	Renderers = []string{RendererTea, RendererTcell}
	// SortKeys lists valid dashboard.sort values.
	SortKeys = []string{"topology", "name", "throughput", "errors"}
)

// DefaultConfig returns a config with every default applied.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Address:   DefaultAddress,
			Transport: DefaultTransport,
			Timeout:   DefaultTimeout,
			LostAfter: DefaultLostAfter,
		},
		Dashboard: DashboardConfig{
			RefreshInterval: DefaultRefreshInterval,
			TickInterval:    DefaultTickInterval,
			Renderer:        DefaultRenderer,
			Sort:            DefaultSort,
			TrendSize:       DefaultTrendSize,
		},
	}
}

// ResolveURL returns the API endpoint: the explicit URL if set, otherwise
// one derived from the address.
func (c *Config) ResolveURL() string {
	if c.API.URL != "" {
		return c.API.URL
	}
	addr := c.API.Address
	if addr == "" {
		addr = DefaultAddress
	}
	return "http://" + addr + "/graphql"
}

// YAML renders the config as it would appear in pipetop.yaml.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
