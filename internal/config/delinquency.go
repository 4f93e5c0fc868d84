package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DayRange is an inclusive days-late range.
type DayRange struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

type LateThresholds struct {
	Standard   DayRange `mapstructure:"standard"`
	Transition DayRange `mapstructure:"transition"`
	ChronicMin int      `mapstructure:"chronicMin"`
}

type AgingBucket struct {
	Label   string `mapstructure:"label"`
	MinDays int    `mapstructure:"minDays"`
	MaxDays *int   `mapstructure:"maxDays"`
}

// DelinquencyConfig holds the hot-reloadable classification rules.
type DelinquencyConfig struct {
	LateThresholds LateThresholds `mapstructure:"lateThresholds"`
	AgingBuckets   []AgingBucket  `mapstructure:"agingBuckets"`
	ListLimit      int            `mapstructure:"listLimit"`
}

func DefaultDelinquencyConfig() DelinquencyConfig {
	return DelinquencyConfig{
		LateThresholds: LateThresholds{
			Standard:   DayRange{Min: 1, Max: 6},
			Transition: DayRange{Min: 7, Max: 9},
			ChronicMin: 10,
		},
		AgingBuckets: []AgingBucket{
			{Label: "1-15", MinDays: 1, MaxDays: intPtr(15)},
			{Label: "16-30", MinDays: 16, MaxDays: intPtr(30)},
			{Label: "31-60", MinDays: 31, MaxDays: intPtr(60)},
			{Label: "60+", MinDays: 61, MaxDays: nil},
		},
		ListLimit: 50,
	}
}

func intPtr(v int) *int { return &v }

type DelinquencyConfigHolder struct {
	current atomic.Value // holds DelinquencyConfig
}

// NewStaticDelinquencyConfigHolder wraps a fixed config without file watching.
func NewStaticDelinquencyConfigHolder(cfg DelinquencyConfig) *DelinquencyConfigHolder {
	holder := &DelinquencyConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewDelinquencyConfigHolder(log *zap.Logger) (*DelinquencyConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.delinquency")

	v := viper.New()

	v.SetConfigName("delinquency")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/delinquency/config")
	v.AddConfigPath("/etc/delinquency")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DELINQUENCY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Info("delinquency config file not found, using defaults")
		return NewStaticDelinquencyConfigHolder(DefaultDelinquencyConfig()), nil
	}

	cfg, err := decodeDelinquencyConfig(v)
	if err != nil {
		return nil, err
	}
	holder := NewStaticDelinquencyConfigHolder(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeDelinquencyConfig(v)
		if err != nil {
			log.Warn("invalid delinquency config ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("delinquency config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func decodeDelinquencyConfig(v *viper.Viper) (DelinquencyConfig, error) {
	var cfg DelinquencyConfig
	if err := v.UnmarshalKey("delinquency", &cfg); err != nil {
		return DelinquencyConfig{}, err
	}
	defaults := DefaultDelinquencyConfig()
	if cfg.LateThresholds == (LateThresholds{}) {
		cfg.LateThresholds = defaults.LateThresholds
	}
	if len(cfg.AgingBuckets) == 0 {
		cfg.AgingBuckets = defaults.AgingBuckets
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = defaults.ListLimit
	}
	if err := ValidateDelinquencyConfig(cfg); err != nil {
		return DelinquencyConfig{}, err
	}
	return cfg, nil
}

func (h *DelinquencyConfigHolder) Get() DelinquencyConfig {
	return h.current.Load().(DelinquencyConfig)
}

func ValidateDelinquencyConfig(cfg DelinquencyConfig) error {
	t := cfg.LateThresholds
	switch {
	case t.Standard.Min < 1 || t.Standard.Max < t.Standard.Min:
		return errors.New("delinquency.lateThresholds.standard is invalid")
	case t.Transition.Min != t.Standard.Max+1 || t.Transition.Max < t.Transition.Min:
		return errors.New("delinquency.lateThresholds.transition must follow standard")
	case t.ChronicMin != t.Transition.Max+1:
		return errors.New("delinquency.lateThresholds.chronicMin must follow transition")
	}
	if len(cfg.AgingBuckets) == 0 {
		return errors.New("delinquency.agingBuckets cannot be empty")
	}
	for i, b := range cfg.AgingBuckets {
		if strings.TrimSpace(b.Label) == "" {
			return fmt.Errorf("delinquency.agingBuckets[%d].label is required", i)
		}
		if b.MaxDays != nil && *b.MaxDays < b.MinDays {
			return fmt.Errorf("delinquency.agingBuckets[%d] has maxDays below minDays", i)
		}
	}
	return nil
}
