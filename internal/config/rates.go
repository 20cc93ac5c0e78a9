package config

import (
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RatesConfig carries the default financial rates applied when a bill
// submission leaves them blank. Statutory charge schedules themselves come
// from the rule service, never from this file.
type RatesConfig struct {
	DefaultGSTRate       float64 `mapstructure:"defaultGstRate"`
	DefaultRetentionRate float64 `mapstructure:"defaultRetentionRate"`
	CautionThreshold     float64 `mapstructure:"cautionThreshold"`
}

func DefaultRatesConfig() RatesConfig {
	return RatesConfig{
		DefaultGSTRate:       18,
		DefaultRetentionRate: 5,
		CautionThreshold:     0.8,
	}
}

// RatesConfigHolder keeps the current rates config and hot-reloads it when
// the backing file changes.
type RatesConfigHolder struct {
	current atomic.Value // holds RatesConfig
}

func NewRatesConfigHolder() (*RatesConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("rates")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/rabill/config") // Volume-mounted config
	v.AddConfigPath("/etc/rabill")            // System config
	v.AddConfigPath(".")                      // Current directory (dev mode)

	v.SetEnvPrefix("RABILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultRatesConfig()
		v.SetDefault("rates.defaultGstRate", defaults.DefaultGSTRate)
		v.SetDefault("rates.defaultRetentionRate", defaults.DefaultRetentionRate)
		v.SetDefault("rates.cautionThreshold", defaults.CautionThreshold)
	}

	holder := &RatesConfigHolder{}
	if err := holder.reload(v); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if err := holder.reload(v); err != nil {
			log.Printf("rates config reload failed: %v", err)
		}
	})
	v.WatchConfig()

	return holder, nil
}

func (h *RatesConfigHolder) reload(v *viper.Viper) error {
	var cfg RatesConfig
	if err := v.UnmarshalKey("rates", &cfg); err != nil {
		return err
	}
	cfg = cfg.withDefaults()
	h.current.Store(cfg)
	return nil
}

// Current returns the active rates config.
func (h *RatesConfigHolder) Current() RatesConfig {
	if v, ok := h.current.Load().(RatesConfig); ok {
		return v
	}
	return DefaultRatesConfig()
}

func (c RatesConfig) withDefaults() RatesConfig {
	defaults := DefaultRatesConfig()
	if c.DefaultGSTRate <= 0 {
		c.DefaultGSTRate = defaults.DefaultGSTRate
	}
	if c.DefaultRetentionRate <= 0 {
		c.DefaultRetentionRate = defaults.DefaultRetentionRate
	}
	if c.CautionThreshold <= 0 || c.CautionThreshold >= 1 {
		c.CautionThreshold = defaults.CautionThreshold
	}
	return c
}
