package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/awaistahir/okte-windows/internal/naming"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrUnknownMaster = errors.New("unknown master")
)

const (
	DefaultMasterID          = "master"
	DefaultFetchTime         = "14:00"
	DefaultFetchDays         = 2
	MaxFetchDays             = 7
	DefaultIncludeDeviceName = true
)

// calculatorNamespace seeds the name-based ids of calculators configured without one
var calculatorNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://isot.okte.sk/okte-windows/calculator"))

// CalculatorID is the stable id of a calculator configured without one. It
// depends only on the sanitized device name, so settings stored under it
// survive restarts.
func CalculatorID(name string) string {
	return uuid.NewSHA1(calculatorNamespace, []byte(naming.SanitizeDeviceName(name))).String()
}

func includeDevice(v *bool) bool {
	if v == nil {
		return DefaultIncludeDeviceName
	}
	return *v
}

// MasterConfig describes one price feed device
type MasterConfig struct {
	ID        string `mapstructure:"id"`
	Name      string `mapstructure:"name"`
	FetchTime string `mapstructure:"fetch_time"` // HH:MM local
	FetchDays int    `mapstructure:"fetch_days"`

	IncludeDeviceName *bool `mapstructure:"include_device_name"`
}

// IncludeDevice reports whether entity names carry the device name, true unless disabled
func (m MasterConfig) IncludeDevice() bool { return includeDevice(m.IncludeDeviceName) }

// FetchClock returns the hour and minute of FetchTime
func (m MasterConfig) FetchClock() (int, int, error) {
	t, err := time.Parse("15:04", m.FetchTime)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: master %s fetch_time %q", ErrInvalidConfig, m.ID, m.FetchTime)
	}
	return t.Hour(), t.Minute(), nil
}

// CalculatorConfig describes one window calculator device
type CalculatorConfig struct {
	ID                string `mapstructure:"id"`
	Name              string `mapstructure:"name"`
	Master            string `mapstructure:"master"`
	IncludeDeviceName *bool  `mapstructure:"include_device_name"`
}

// IncludeDevice reports whether entity names carry the device name, true unless disabled
func (c CalculatorConfig) IncludeDevice() bool { return includeDevice(c.IncludeDeviceName) }

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SunConfig struct {
	BaseURL   string  `mapstructure:"base_url"`
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the daemon and CLI configuration
type Config struct {
	Timezone         string             `mapstructure:"timezone"`
	DB               string             `mapstructure:"db"`
	Listen           string             `mapstructure:"listen"`
	FallbackInterval time.Duration      `mapstructure:"fallback_interval"`
	API              APIConfig          `mapstructure:"api"`
	Sun              SunConfig          `mapstructure:"sun"`
	Log              LogConfig          `mapstructure:"log"`
	Masters          []MasterConfig     `mapstructure:"masters"`
	Calculators      []CalculatorConfig `mapstructure:"calculators"`

	loc *time.Location
}

// Dir is the default directory for the config file and database
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".okte"
	}
	return filepath.Join(home, ".okte")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("timezone", "Europe/Bratislava")
	v.SetDefault("db", filepath.Join(Dir(), "okte.db"))
	v.SetDefault("listen", ":8080")
	v.SetDefault("fallback_interval", 5*time.Minute)
	v.SetDefault("api.base_url", "https://isot.okte.sk/api/v1/dam/results")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("sun.base_url", "")
	v.SetDefault("sun.latitude", 48.1486)
	v.SetDefault("sun.longitude", 17.1077)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads path, or $HOME/.okte/config.yaml when path is empty. A missing
// default file is not an error. Environment variables prefixed OKTE_ override
// file values; a .env file in the working directory is loaded first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("OKTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(Dir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in one default master, missing per-device fields and
// calculator names and ids
func (c *Config) applyDefaults() {
	if len(c.Masters) == 0 {
		c.Masters = []MasterConfig{{ID: DefaultMasterID}}
	}
	for i := range c.Masters {
		m := &c.Masters[i]
		if m.ID == "" {
			m.ID = DefaultMasterID
		}
		if m.Name == "" {
			m.Name = naming.MasterName
		}
		if m.FetchTime == "" {
			m.FetchTime = DefaultFetchTime
		}
		if m.FetchDays == 0 {
			m.FetchDays = DefaultFetchDays
		}
	}

	names := make([]string, 0, len(c.Calculators))
	for _, calc := range c.Calculators {
		names = append(names, calc.Name)
	}
	for i := range c.Calculators {
		calc := &c.Calculators[i]
		if calc.Name == "" {
			calc.Name = naming.CalculatorName(naming.NextCalculatorNumber(names))
			names = append(names, calc.Name)
		}
		if calc.ID == "" {
			calc.ID = CalculatorID(calc.Name)
		}
		if calc.Master == "" && len(c.Masters) == 1 {
			calc.Master = c.Masters[0].ID
		}
	}
}

// Validate checks the timezone, fetch schedule and device references
func (c *Config) Validate() error {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	c.loc = loc

	if c.FallbackInterval < 0 {
		return fmt.Errorf("%w: fallback_interval must not be negative", ErrInvalidConfig)
	}

	masters := map[string]bool{}
	for _, m := range c.Masters {
		if masters[m.ID] {
			return fmt.Errorf("%w: duplicate master id %q", ErrInvalidConfig, m.ID)
		}
		masters[m.ID] = true

		if _, _, err := m.FetchClock(); err != nil {
			return err
		}
		if m.FetchDays < 1 || m.FetchDays > MaxFetchDays {
			return fmt.Errorf("%w: master %s fetch_days %d outside 1-%d", ErrInvalidConfig, m.ID, m.FetchDays, MaxFetchDays)
		}
	}

	calculators := map[string]bool{}
	for _, calc := range c.Calculators {
		if calculators[calc.ID] {
			return fmt.Errorf("%w: duplicate calculator id %q (name %q)", ErrInvalidConfig, calc.ID, calc.Name)
		}
		calculators[calc.ID] = true

		if !masters[calc.Master] {
			return fmt.Errorf("calculator %s: %w %q", calc.ID, ErrUnknownMaster, calc.Master)
		}
	}

	return nil
}

// Location is the validated timezone, UTC before Validate
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}
