package chips

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Thresholds holds the tunable cutoffs behind the chip predicates.
// Zero values are replaced by defaults at load time so a config file only
// needs to name the settings it overrides.
type Thresholds struct {
	WhaleValueMin       float64 `yaml:"whale_value_min"`
	UnusualValueMin     float64 `yaml:"unusual_value_min"`
	UrgentValueMin      float64 `yaml:"urgent_value_min"`
	GrenadeValueMin     float64 `yaml:"grenade_value_min"`
	BigSizeMin          int64   `yaml:"big_size_min"`
	RepeatMin           int     `yaml:"repeat_min"`
	BuilderRepeatMin    int     `yaml:"builder_repeat_min"`
	OtmPctMin           float64 `yaml:"otm_pct_min"`
	VolOiRatioMin       float64 `yaml:"vol_oi_ratio_min"`
	BullishRatioMin     float64 `yaml:"bullish_ratio_min"`
	RisingVolMultiplier float64 `yaml:"rising_vol_multiplier"`
	AMSpikeMultiplier   float64 `yaml:"am_spike_multiplier"`
	GrenadeDteMax       int     `yaml:"grenade_dte_max"`
	LeapsDteMin         int     `yaml:"leaps_dte_min"`
}

// DefaultThresholds returns the compiled-in defaults.
func DefaultThresholds() *Thresholds {
	return &Thresholds{
		WhaleValueMin:       250_000,
		UnusualValueMin:     25_000,
		UrgentValueMin:      10_000,
		GrenadeValueMin:     25_000,
		BigSizeMin:          500,
		RepeatMin:           3,
		BuilderRepeatMin:    5,
		OtmPctMin:           5.0,
		VolOiRatioMin:       2.0,
		BullishRatioMin:     0.70,
		RisingVolMultiplier: 3.0,
		AMSpikeMultiplier:   3.0,
		GrenadeDteMax:       7,
		LeapsDteMin:         365,
	}
}

// LoadThresholds reads a YAML thresholds file and overlays it on the
// defaults. A missing path returns the defaults unchanged.
func LoadThresholds(path string) (*Thresholds, error) {
	th := DefaultThresholds()
	if path == "" {
		return th, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read thresholds file: %w", err)
	}

	var overlay Thresholds
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse thresholds file: %w", err)
	}

	th.merge(&overlay)
	return th, nil
}

// merge overlays non-zero fields from o.
func (t *Thresholds) merge(o *Thresholds) {
	if o.WhaleValueMin > 0 {
		t.WhaleValueMin = o.WhaleValueMin
	}
	if o.UnusualValueMin > 0 {
		t.UnusualValueMin = o.UnusualValueMin
	}
	if o.UrgentValueMin > 0 {
		t.UrgentValueMin = o.UrgentValueMin
	}
	if o.GrenadeValueMin > 0 {
		t.GrenadeValueMin = o.GrenadeValueMin
	}
	if o.BigSizeMin > 0 {
		t.BigSizeMin = o.BigSizeMin
	}
	if o.RepeatMin > 0 {
		t.RepeatMin = o.RepeatMin
	}
	if o.BuilderRepeatMin > 0 {
		t.BuilderRepeatMin = o.BuilderRepeatMin
	}
	if o.OtmPctMin > 0 {
		t.OtmPctMin = o.OtmPctMin
	}
	if o.VolOiRatioMin > 0 {
		t.VolOiRatioMin = o.VolOiRatioMin
	}
	if o.BullishRatioMin > 0 {
		t.BullishRatioMin = o.BullishRatioMin
	}
	if o.RisingVolMultiplier > 0 {
		t.RisingVolMultiplier = o.RisingVolMultiplier
	}
	if o.AMSpikeMultiplier > 0 {
		t.AMSpikeMultiplier = o.AMSpikeMultiplier
	}
	if o.GrenadeDteMax > 0 {
		t.GrenadeDteMax = o.GrenadeDteMax
	}
	if o.LeapsDteMin > 0 {
		t.LeapsDteMin = o.LeapsDteMin
	}
}
