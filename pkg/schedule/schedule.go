// Package schedule validates payment chronology and counts installments.
package schedule

import "errors"

// ErrInvalidChronology is returned when the timestamps and recurrence interval cannot produce
// at least one installment.
var ErrInvalidChronology = errors.New("the timestamps and recurrence interval must be chronological")

// ErrInvalidAmount is returned when the per-installment amount is zero.
var ErrInvalidAmount = errors.New("amount must be greater than zero")

// Installments validates a schedule and returns how many installments it produces.
//
// A zero interval is a one-shot payment and requires completedAt == nextTransferAt.
// A recurring schedule must fit at least one full interval before completedAt. The count
// rounds up, so a short final interval is its own installment: that is the number of
// advances it takes for nextTransferAt to reach completedAt.
func Installments(amount, interval, nextTransferAt, completedAt uint64) (uint64, error) {
	if amount == 0 {
		return 0, ErrInvalidAmount
	}

	if interval == 0 {
		if completedAt != nextTransferAt {
			return 0, ErrInvalidChronology
		}
		return 1, nil
	}

	if completedAt < interval || nextTransferAt > completedAt-interval {
		return 0, ErrInvalidChronology
	}

	span := completedAt - nextTransferAt
	n := span / interval
	if span%interval != 0 {
		n++
	}
	return n, nil
}

// Next returns the timestamp following next, clamped to completedAt.
func Next(next, interval, completedAt uint64) uint64 {
	if interval > completedAt-next {
		return completedAt
	}
	return next + interval
}
