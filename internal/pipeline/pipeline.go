package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/apperrors"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/marketdata"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/model"
)

// StageReport records what one stage did with its input: how many tickers
// entered, how many survived, how many were dropped for missing data rather
// than failing a criterion, and whether a soft gate fell back to the prior
// stage's list.
type StageReport struct {
	Stage    string `json:"stage"`
	Entered  int    `json:"entered"`
	Survived int    `json:"survived"`
	Skipped  int    `json:"skipped"`
	Fallback bool   `json:"fallback,omitempty"`
}

// Outcome is the result of one pipeline execution: the allocation (nil when
// the pipeline failed), the stage-five finalist list, and per-stage reports
// for diagnostics.
type Outcome struct {
	Allocation model.Allocation
	Finalists  []string
	Stages     []StageReport
}

// Selector runs the six-stage pipeline against an immutable dataset. It is
// stateless between calls and safe for concurrent use.
type Selector struct {
	data     *marketdata.Dataset
	riskFree float64
}

// NewSelector creates a Selector over the dataset. riskFree is the
// annualized risk-free rate used by the maximum-Sharpe strategy.
func NewSelector(data *marketdata.Dataset, riskFree float64) *Selector {
	return &Selector{data: data, riskFree: riskFree}
}

// Run executes all six stages for the cutoff date and profile. Stages one
// and two abort on empty output; stages three to five fall back to the
// previous stage's survivors; stage six failure yields an error. The run is
// deterministic: identical inputs produce identical allocations.
func (s *Selector) Run(ctx context.Context, date time.Time, profile Profile) (*Outcome, error) {
	out := &Outcome{}

	sectors, report, err := s.sectorMomentum(ctx, date)
	if err != nil {
		return nil, err
	}
	out.Stages = append(out.Stages, *report)
	if len(sectors) == 0 {
		return out, fmt.Errorf("sector momentum at %s: %w", date.Format("2006-01-02"), apperrors.ErrEmptySelection)
	}

	screened, report, err := s.screen(ctx, date, sectors, profile)
	if err != nil {
		return nil, err
	}
	out.Stages = append(out.Stages, *report)
	if len(screened) == 0 {
		return out, fmt.Errorf("fundamental screen at %s: %w", date.Format("2006-01-02"), apperrors.ErrEmptySelection)
	}

	strong, report2 := s.relativeStrength(date, screened)
	if len(strong) == 0 {
		report2.Fallback = true
		strong = screened
	}
	out.Stages = append(out.Stages, *report2)

	accumulating, report3 := s.obvFilter(date, strong)
	if len(accumulating) == 0 {
		report3.Fallback = true
		accumulating = strong
	}
	out.Stages = append(out.Stages, *report3)

	finalists, report4 := s.industryStrength(date, accumulating)
	if len(finalists) == 0 {
		report4.Fallback = true
		finalists = accumulating
	}
	out.Stages = append(out.Stages, *report4)
	out.Finalists = finalists

	allocation, report5 := s.optimize(date, finalists, profile)
	out.Stages = append(out.Stages, *report5)
	if len(allocation) == 0 {
		return out, fmt.Errorf("optimization at %s: %w", date.Format("2006-01-02"), apperrors.ErrEmptySelection)
	}
	out.Allocation = allocation
	return out, nil
}
