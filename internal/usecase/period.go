package usecase

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmerrifield20/riskposture/internal/kri"
)

// Period defaults and bounds for ResolvePeriod.
const (
	DefaultDays = 30
	MaxDays     = 3650
)

// ErrBadPeriod wraps every ResolvePeriod failure.
var ErrBadPeriod = errors.New("invalid period")

// ResolvePeriod turns user input into a period: explicit YYYY-MM-DD bounds
// when both are given, otherwise the last days ending at now. days of zero
// means DefaultDays.
func ResolvePeriod(from, to string, days int, now time.Time) (kri.Period, error) {
	var p kri.Period
	switch {
	case from != "" && to != "":
		f, err := time.Parse(time.DateOnly, from)
		if err != nil {
			return p, fmt.Errorf("%w: from must be YYYY-MM-DD", ErrBadPeriod)
		}
		t, err := time.Parse(time.DateOnly, to)
		if err != nil {
			return p, fmt.Errorf("%w: to must be YYYY-MM-DD", ErrBadPeriod)
		}
		p = kri.Period{From: f, To: t}
	case from != "" || to != "":
		return p, fmt.Errorf("%w: from and to must be given together", ErrBadPeriod)
	default:
		if days == 0 {
			days = DefaultDays
		}
		if days < 1 || days > MaxDays {
			return p, fmt.Errorf("%w: days must be between 1 and %d", ErrBadPeriod, MaxDays)
		}
		p = kri.LastDays(now, days)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("%w: %v", ErrBadPeriod, err)
	}
	return p, nil
}
