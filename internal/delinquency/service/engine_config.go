package service

import (
	"github.com/smallbiznis/delinquency/internal/config"
	"github.com/smallbiznis/delinquency/internal/delinquency/engine"
)

// EngineConfig merges the reloadable rules with the static settings.
func EngineConfig(rules config.DelinquencyConfig, cfg config.Config) engine.Config {
	ranges := make([]engine.AgingRange, 0, len(rules.AgingBuckets))
	for _, b := range rules.AgingBuckets {
		ranges = append(ranges, engine.AgingRange{Label: b.Label, MinDays: b.MinDays, MaxDays: b.MaxDays})
	}
	t := rules.LateThresholds
	return engine.Config{
		ReferenceDate: cfg.ReferenceDate,
		Thresholds: engine.Thresholds{
			Standard:   engine.Range{Min: t.Standard.Min, Max: t.Standard.Max},
			Transition: engine.Range{Min: t.Transition.Min, Max: t.Transition.Max},
			ChronicMin: t.ChronicMin,
		},
		AgingRanges: ranges,
		ListLimit:   rules.ListLimit,
		Location:    cfg.Location(),
	}
}
