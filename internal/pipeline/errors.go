package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/spigell/jobscan/internal/filtering"
	"github.com/spigell/jobscan/internal/quota"
)

var (
	ErrNoJobReferences  = errors.New("no job references supplied")
	ErrInvalidThreshold = filtering.ErrInvalidThreshold
)

// QuotaExceededError is returned when the general budget of an identity is spent.
type QuotaExceededError struct {
	Identity   string
	Class      quota.Class
	Used       int
	Limit      int
	RetryAfter time.Duration
}

func (e *QuotaExceededError) Error() string {
	msg := fmt.Sprintf("%s quota exceeded for %q: %d/%d calls used, try again later", e.Class, e.Identity, e.Used, e.Limit)
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (in %s)", e.RetryAfter.Round(time.Second))
	}
	return msg
}
