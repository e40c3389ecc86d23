package core

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Rate returns depositAmount / (endTime - startTime), truncated. The
// remainder is never pre-allocated; Redeemable hands it out once the
// stream has ended.
func Rate(depositAmount *uint256.Int, startTime, endTime uint64) (*uint256.Int, error) {
	if endTime <= startTime {
		return nil, fmt.Errorf("%w: end time %d must be after start time %d", ErrInvalidDuration, endTime, startTime)
	}
	duration := uint256.NewInt(endTime - startTime)
	return new(uint256.Int).Div(cloneAmount(depositAmount), duration), nil
}

// Redeemable is the part of stream.Balance that can be withdrawn at now.
// Accrual is measured from StartTime and reduced by what was already
// withdrawn, so partial withdrawals never reset the clock.
func Redeemable(stream Stream, now uint64) *uint256.Int {
	balance := cloneAmount(stream.Balance)
	if now <= stream.StartTime {
		return new(uint256.Int)
	}
	if now >= stream.EndTime {
		return balance
	}

	elapsed := uint256.NewInt(now - stream.StartTime)
	accrued, overflow := new(uint256.Int).MulOverflow(cloneAmount(stream.RatePerSecond), elapsed)
	if overflow {
		return balance
	}
	withdrawn := stream.Withdrawn()
	if !withdrawn.Lt(accrued) {
		return new(uint256.Int)
	}
	available := accrued.Sub(accrued, withdrawn)
	if balance.Lt(available) {
		return balance
	}
	return available
}
