// Package pipeline implements the six-stage stock selection pipeline: sector
// momentum, fundamental screen, relative strength, volume flow, industry
// strength, and portfolio optimization. Stages one and two are hard gates
// that abort the pipeline when empty; stages three to five fall back to the
// previous stage's survivors; stage six is terminal.
package pipeline

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/apperrors"
)

// Strategy selects the stage-six weighting scheme.
type Strategy string

const (
	// StrategyMinVariance minimizes portfolio variance with no return input.
	StrategyMinVariance Strategy = "min_variance"
	// StrategyMaxSharpe maximizes the Sharpe ratio, falling back to
	// minimum variance on optimizer failure.
	StrategyMaxSharpe Strategy = "max_sharpe"
	// StrategyMomentum equal-weights the top ten tickers by 3-month
	// momentum, bypassing the covariance optimizer.
	StrategyMomentum Strategy = "momentum"
)

// Profile is a validated risk profile: the screening thresholds, the
// weighting strategy, and the risk overlay knobs. Optional criteria use
// pointers; nil disables the criterion entirely, which is distinct from a
// zero threshold (for example a 0.0 earnings-growth floor still requires
// non-negative growth).
type Profile struct {
	Name string `yaml:"name"`

	// Screening thresholds (stage two).
	MinMarketCap             float64  `yaml:"min_market_cap"`
	MinAvgVolume             float64  `yaml:"min_avg_volume"`
	MinRelativeVolume        float64  `yaml:"min_relative_volume"`
	RequireDividend          bool     `yaml:"require_dividend"`
	RequirePositiveNetMargin bool     `yaml:"require_positive_net_margin"`
	RequirePositiveOpMargin  bool     `yaml:"require_positive_op_margin"`
	MinEarningsGrowth        *float64 `yaml:"min_earnings_growth"`
	MinROE                   float64  `yaml:"min_roe"`
	MaxDebtEquity            *float64 `yaml:"max_debt_equity"`
	RequireAboveSMA200       bool     `yaml:"require_above_sma200"`
	SkipVolatilityCap        bool     `yaml:"skip_volatility_cap"`

	// Weighting (stage six).
	Strategy     Strategy `yaml:"strategy"`
	MaxWeight    float64  `yaml:"max_weight"`
	MomentumTilt float64  `yaml:"momentum_tilt"`

	// Risk overlay.
	StopLossEnabled bool    `yaml:"stop_loss_enabled"`
	StopLossPct     float64 `yaml:"stop_loss_pct"`
	BullStopLossPct float64 `yaml:"bull_stop_loss_pct"`
	// BullWidensStops widens the stop-loss and disables the trailing stop
	// while the benchmark trades above its 200-day average.
	BullWidensStops bool `yaml:"bull_widens_stops"`
}

// Validate checks the profile for internally inconsistent settings.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile: %w: name", apperrors.ErrMissingRequiredField)
	}
	switch p.Strategy {
	case StrategyMinVariance, StrategyMaxSharpe, StrategyMomentum:
	default:
		return fmt.Errorf("profile %s: unknown strategy %q", p.Name, p.Strategy)
	}
	if p.MinMarketCap < 0 || p.MinAvgVolume < 0 || p.MinRelativeVolume < 0 {
		return fmt.Errorf("profile %s: thresholds must be non-negative", p.Name)
	}
	if p.Strategy != StrategyMomentum {
		if p.MaxWeight <= minWeightFloor || p.MaxWeight > 1 {
			return fmt.Errorf("profile %s: max_weight %v out of range (%v, 1]", p.Name, p.MaxWeight, minWeightFloor)
		}
		if p.MomentumTilt < 0 || p.MomentumTilt >= 1 {
			return fmt.Errorf("profile %s: momentum_tilt %v out of range [0, 1)", p.Name, p.MomentumTilt)
		}
	}
	if p.StopLossEnabled {
		if p.StopLossPct >= 0 || p.BullStopLossPct >= 0 {
			return fmt.Errorf("profile %s: stop-loss thresholds must be negative", p.Name)
		}
	}
	return nil
}

func floatPtr(v float64) *float64 { return &v }

// BuiltinProfiles returns the three built-in risk profiles.
func BuiltinProfiles() map[string]Profile {
	return map[string]Profile{
		"conservative": {
			Name:                     "conservative",
			MinMarketCap:             10e9,
			MinAvgVolume:             1_000_000,
			RequireDividend:          true,
			RequirePositiveNetMargin: true,
			RequirePositiveOpMargin:  true,
			MinROE:                   0.10,
			MaxDebtEquity:            floatPtr(1.0),
			RequireAboveSMA200:       true,
			Strategy:                 StrategyMinVariance,
			MaxWeight:                0.12,
			MomentumTilt:             0.20,
			StopLossEnabled:          false,
			StopLossPct:              -0.30,
			BullStopLossPct:          -0.40,
		},
		"balanced": {
			Name:                     "balanced",
			MinMarketCap:             10e9,
			MinAvgVolume:             2_000_000,
			MinRelativeVolume:        1.0,
			RequireDividend:          true,
			RequirePositiveNetMargin: true,
			RequirePositiveOpMargin:  true,
			MinEarningsGrowth:        floatPtr(0.0),
			MinROE:                   0.10,
			RequireAboveSMA200:       true,
			Strategy:                 StrategyMaxSharpe,
			MaxWeight:                0.15,
			MomentumTilt:             0.30,
			StopLossEnabled:          true,
			StopLossPct:              -0.30,
			BullStopLossPct:          -0.40,
			BullWidensStops:          true,
		},
		"aggressive": {
			Name:                     "aggressive",
			MinMarketCap:             300e6,
			MinAvgVolume:             200_000,
			MinEarningsGrowth:        floatPtr(0.10),
			MinROE:                   0.15,
			RequireAboveSMA200:       true,
			SkipVolatilityCap:        true,
			Strategy:                 StrategyMomentum,
			StopLossEnabled:          true,
			StopLossPct:              -0.30,
			BullStopLossPct:          -0.40,
			BullWidensStops:          true,
		},
	}
}

// LoadProfiles returns the built-in profiles, overlaid with any presets from
// the YAML file at path. An empty path returns built-ins only. Every profile
// is validated at load time so a bad preset fails startup, not a run.
func LoadProfiles(path string) (map[string]Profile, error) {
	profiles := BuiltinProfiles()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read profile presets: %w", err)
		}
		var overrides map[string]Profile
		if err := yaml.Unmarshal(data, &overrides); err != nil {
			return nil, fmt.Errorf("failed to parse profile presets: %w", err)
		}
		for name, p := range overrides {
			if p.Name == "" {
				p.Name = name
			}
			profiles[name] = p
		}
	}

	for name, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("invalid profile %q: %w", name, err)
		}
	}
	return profiles, nil
}

// ProfileNames returns the sorted names of a profile set.
func ProfileNames(profiles map[string]Profile) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
