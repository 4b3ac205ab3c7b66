package service

import (
	"context"
	"math/rand"

	appErrors "github.com/noah-isme/sce-api/pkg/errors"
)

// existsFunc reports whether a candidate number is already taken.
type existsFunc func(ctx context.Context, n int) (bool, error)

const maxRandomDraws = 96

// allocateNumber picks an unused number in [min, max]. Random draws are
// capped so a nearly full range cannot spin forever; a single sequential
// sweep then settles whether the range is actually exhausted.
func allocateNumber(ctx context.Context, min, max int, exists existsFunc) (int, error) {
	if min > max {
		return 0, appErrors.ErrNumbersExhausted
	}
	span := max - min + 1
	draws := maxRandomDraws
	if span < draws {
		draws = span
	}
	for i := 0; i < draws; i++ {
		candidate := min + rand.Intn(span)
		taken, err := exists(ctx, candidate)
		if err != nil {
			return 0, err
		}
		if !taken {
			return candidate, nil
		}
	}
	for candidate := min; candidate <= max; candidate++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return 0, err
		}
		if !taken {
			return candidate, nil
		}
	}
	return 0, appErrors.ErrNumbersExhausted
}
