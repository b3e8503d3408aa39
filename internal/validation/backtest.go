package validation

import (
	"fmt"
	"regexp"
	"time"
)

// symbolPattern accepts plain tickers plus the dot and hyphen share-class
// forms (BRK.B, BF-B).
var symbolPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9.\-]{0,9}$`)

// runNamePattern keeps run names path and filename safe.
var runNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,100}$`)

// ParseTime parses a date string in "2006-01-02" or RFC3339 format.
// Note: mirrors repository.ParseTime; both are intentionally kept local to avoid cross-layer imports.
func ParseTime(str string) (time.Time, error) {
	returnTime, err := time.Parse("2006-01-02", str)
	if err != nil {
		returnTime, err = time.Parse(time.RFC3339, str)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse date: %w", err)
		}
	}
	return returnTime.UTC(), nil
}

// ValidateSymbol checks a ticker symbol's shape.
func ValidateSymbol(symbol string) error {
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid ticker symbol: %q", symbol)
	}
	return nil
}

// CreateBacktest is the validated form of a run creation request.
type CreateBacktest struct {
	Name            string
	Profile         string
	Tickers         []string
	Start           time.Time
	End             time.Time
	InitialCapital  float64
	RebalanceMonths int
}

// ValidateCreateBacktest checks every field of a run creation request and
// returns all failures at once.
func ValidateCreateBacktest(name, profile string, tickers []string, startDate, endDate string, initialCapital float64, rebalanceMonths int) (CreateBacktest, error) {
	var verr Error
	out := CreateBacktest{
		Name:            name,
		Profile:         profile,
		Tickers:         tickers,
		InitialCapital:  initialCapital,
		RebalanceMonths: rebalanceMonths,
	}

	if !runNamePattern.MatchString(name) {
		verr.add("name", "must be 1-100 characters of letters, digits, underscore, or hyphen")
	}
	if profile == "" {
		verr.add("profile", "is required")
	}
	if len(tickers) == 0 {
		verr.add("tickers", "at least one ticker is required")
	}
	for _, t := range tickers {
		if err := ValidateSymbol(t); err != nil {
			verr.add("tickers", err.Error())
			break
		}
	}

	start, err := ParseTime(startDate)
	if err != nil {
		verr.add("start_date", "must be YYYY-MM-DD")
	}
	end, err := ParseTime(endDate)
	if err != nil {
		verr.add("end_date", "must be YYYY-MM-DD")
	}
	out.Start, out.End = start, end
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		verr.add("end_date", "must be after start_date")
	}

	if initialCapital <= 0 {
		verr.add("initial_capital", "must be positive")
	}
	if rebalanceMonths < 1 {
		verr.add("rebalance_months", "must be at least 1")
	}

	return out, verr.orNil()
}
