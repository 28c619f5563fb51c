package config

import (
	"fmt"
	"os"
	"strings"

	"attn-signals/internal/awards"
	"attn-signals/internal/tiering"
	"attn-signals/internal/trend"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// PolicyFileEnv names the variable pointing at an optional YAML policy file.
const PolicyFileEnv = "ATTN_POLICY_FILE"

const envPrefix = "ATTN_"

// Policy holds the school-specific constants of the signal pipeline.
type Policy struct {
	// Smoothing and trend
	SmoothingWindow int     `koanf:"smoothing_window"`
	Decay           float64 `koanf:"decay"`
	TrendThreshold  float64 `koanf:"trend_threshold"`
	Workers         int     `koanf:"workers"`

	// Baseline and recent windows, in series entries
	BaselineWeeks int `koanf:"baseline_weeks"`
	RecentWeeks   int `koanf:"recent_weeks"`

	// Tiering
	CutWeight       float64 `koanf:"cut_weight"`
	AbsenceWeight   float64 `koanf:"absence_weight"`
	TardyWeight     float64 `koanf:"tardy_weight"`
	Tier2Percentile float64 `koanf:"tier2_percentile"`
	Tier3Percentile float64 `koanf:"tier3_percentile"`
	TrendOverride   bool    `koanf:"trend_override"`
	DefaultCohort   string  `koanf:"default_cohort"`

	// Awards
	MaxBaseline float64 `koanf:"max_baseline"`
	MinWeeks    int     `koanf:"min_weeks"`
	SlopeWeight float64 `koanf:"slope_weight"`
}

// DefaultPolicy returns the policy the engines ship with.
func DefaultPolicy() Policy {
	tp := trend.DefaultParams()
	w := trend.DefaultWindows()
	tier := tiering.DefaultParams()
	aw := awards.DefaultParams()

	return Policy{
		SmoothingWindow: tp.Window,
		Decay:           tp.Decay,
		TrendThreshold:  tp.Threshold,
		Workers:         tp.Workers,
		BaselineWeeks:   w.BaselineWeeks,
		RecentWeeks:     w.RecentWeeks,
		CutWeight:       tier.CutWeight,
		AbsenceWeight:   tier.AbsenceWeight,
		TardyWeight:     tier.TardyWeight,
		Tier2Percentile: tier.Tier2Percentile,
		Tier3Percentile: tier.Tier3Percentile,
		TrendOverride:   tier.TrendOverride,
		DefaultCohort:   tier.DefaultCohort,
		MaxBaseline:     aw.MaxBaseline,
		MinWeeks:        aw.MinWeeks,
		SlopeWeight:     aw.SlopeWeight,
	}
}

// LoadPolicy builds a Policy by layering, from low to high precedence:
//  1. defaults
//  2. the YAML file at path, or at $ATTN_POLICY_FILE when path is empty
//  3. env vars with the ATTN_ prefix (ATTN_CUT_WEIGHT -> cut_weight)
func LoadPolicy(path string) (*Policy, error) {
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(PolicyFileEnv)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadPolicy, path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadPolicy, err)
	}

	p := DefaultPolicy()
	if err := k.UnmarshalWithConf("", &p, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadPolicy, err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate rejects policies the engines cannot run with.
func (p Policy) Validate() error {
	switch {
	case p.SmoothingWindow < 1:
		return fmt.Errorf("%w: smoothing_window must be at least 1", ErrInvalidPolicy)
	case p.Decay <= 0 || p.Decay > 1:
		return fmt.Errorf("%w: decay must be in (0, 1]", ErrInvalidPolicy)
	case p.TrendThreshold < 0:
		return fmt.Errorf("%w: trend_threshold must not be negative", ErrInvalidPolicy)
	case p.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidPolicy)
	case p.BaselineWeeks < 1 || p.RecentWeeks < 1:
		return fmt.Errorf("%w: baseline_weeks and recent_weeks must be at least 1", ErrInvalidPolicy)
	case p.CutWeight < 0 || p.AbsenceWeight < 0 || p.TardyWeight < 0:
		return fmt.Errorf("%w: event weights must not be negative", ErrInvalidPolicy)
	case p.Tier2Percentile < 0 || p.Tier3Percentile > 100 || p.Tier2Percentile > p.Tier3Percentile:
		return fmt.Errorf("%w: need 0 <= tier2_percentile <= tier3_percentile <= 100", ErrInvalidPolicy)
	case p.MinWeeks < 1:
		return fmt.Errorf("%w: min_weeks must be at least 1", ErrInvalidPolicy)
	}
	return nil
}

// Trend returns the smoothing and trend parameters.
func (p Policy) Trend() trend.Params {
	return trend.Params{
		Window:    p.SmoothingWindow,
		Decay:     p.Decay,
		Threshold: p.TrendThreshold,
		Workers:   p.Workers,
	}
}

// Windows returns the baseline and recent window sizes.
func (p Policy) Windows() trend.Windows {
	return trend.Windows{BaselineWeeks: p.BaselineWeeks, RecentWeeks: p.RecentWeeks}
}

// Tiering returns the tiering parameters.
func (p Policy) Tiering() tiering.Params {
	return tiering.Params{
		CutWeight:       p.CutWeight,
		AbsenceWeight:   p.AbsenceWeight,
		TardyWeight:     p.TardyWeight,
		Tier2Percentile: p.Tier2Percentile,
		Tier3Percentile: p.Tier3Percentile,
		TrendOverride:   p.TrendOverride,
		DefaultCohort:   p.DefaultCohort,
	}
}

// Awards returns the improvement award parameters.
func (p Policy) Awards() awards.Params {
	return awards.Params{
		Windows:     p.Windows(),
		MaxBaseline: p.MaxBaseline,
		MinWeeks:    p.MinWeeks,
		SlopeWeight: p.SlopeWeight,
	}
}
