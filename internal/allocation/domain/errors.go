package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPercentage  = errors.New("invalid_percentage")
	ErrDuplicateMilestone = errors.New("duplicate_milestone")
	ErrMappingNotFound    = errors.New("mapping_not_found")
	ErrCostItemNotFound   = errors.New("cost_item_not_found")
	ErrInvalidID          = errors.New("invalid_id")
	ErrExceedsRemaining   = errors.New("allocation_exceeds_remaining")
	ErrLockNotAcquired    = errors.New("allocation_lock_not_acquired")
)

// ExceedsRemainingError rejects a mapping that would push the item past
// 100%, reporting the exact headroom left so the caller can re-prompt.
type ExceedsRemainingError struct {
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *ExceedsRemainingError) Error() string {
	return fmt.Sprintf("allocation_exceeds_remaining: requested %s%%, %s%% remaining",
		e.Requested.String(), e.Remaining.String())
}

func (e *ExceedsRemainingError) Unwrap() error { return ErrExceedsRemaining }
