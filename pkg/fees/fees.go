// Package fees sizes the upfront fee reserve for a payment and splits each installment's fee
// between the executor and the treasury.
package fees

import (
	"errors"
	"math"
	"math/bits"
)

const (
	// DefaultExecutorFee is paid to whoever performs a distribution, in native units.
	DefaultExecutorFee uint64 = 1000
	// DefaultProtocolFee is paid to the treasury on every distribution, in native units.
	DefaultProtocolFee uint64 = 1000
)

// ErrOverflow is returned when a fee reserve does not fit in a native balance.
var ErrOverflow = errors.New("fee reserve overflows native balance")

// Policy holds the fixed per-installment fee constants.
type Policy struct {
	ExecutorFee uint64
	ProtocolFee uint64
}

// Split is the fee moved on a single distribution attempt.
type Split struct {
	Executor uint64
	Protocol uint64
}

// DefaultPolicy returns the policy used when no fees are configured.
func DefaultPolicy() Policy {
	return Policy{ExecutorFee: DefaultExecutorFee, ProtocolFee: DefaultProtocolFee}
}

// PerInstallment returns the combined fee charged on each distribution attempt.
func (p Policy) PerInstallment() (uint64, error) {
	sum, carry := bits.Add64(p.ExecutorFee, p.ProtocolFee, 0)
	if carry != 0 || sum > math.MaxInt64 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Reserve returns the native amount escrowed at creation to pay every installment's fees.
func (p Policy) Reserve(installments uint64) (uint64, error) {
	per, err := p.PerInstallment()
	if err != nil {
		return 0, err
	}
	hi, lo := bits.Mul64(installments, per)
	if hi != 0 || lo > math.MaxInt64 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// Split returns the fee paid out on one distribution attempt.
// The split is charged whether or not the installment itself transfers.
func (p Policy) Split() Split {
	return Split{Executor: p.ExecutorFee, Protocol: p.ProtocolFee}
}

// Total returns the combined amount of the split.
func (s Split) Total() uint64 {
	return s.Executor + s.Protocol
}
