package inventory

import (
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ReorderPolicy holds the tunables of the reorder calculation.
type ReorderPolicy struct {
	SafetyFloor       int64           // F: absolute minimum total stock
	FastCapacityShare decimal.Decimal // share of capacity reserved for fast movers
	FastMinimum       int64           // lower bound of the fast-mover threshold
	FastCap           int64           // upper bound of the fast-mover threshold
	PeakMultiplier    decimal.Decimal // headroom over historical peak when estimating capacity
	DisplayMultiplier int64           // display capacity multiple when estimating capacity
	CapacityFloor     int64           // smallest estimated capacity
}

// DefaultReorderPolicy returns the standard thresholds.
func DefaultReorderPolicy() ReorderPolicy {
	return ReorderPolicy{
		SafetyFloor:       50,
		FastCapacityShare: decimal.NewFromFloat(0.40),
		FastMinimum:       60,
		FastCap:           120,
		PeakMultiplier:    decimal.NewFromFloat(1.2),
		DisplayMultiplier: 2,
		CapacityFloor:     100,
	}
}

// Validate rejects inconsistent policies.
func (p ReorderPolicy) Validate() error {
	if p.SafetyFloor < 0 || p.FastMinimum < 0 || p.FastCap < 0 || p.CapacityFloor < 0 || p.DisplayMultiplier < 0 {
		return shared.InvalidInput("Reorder policy values cannot be negative")
	}
	if p.FastCapacityShare.IsNegative() || p.FastCapacityShare.GreaterThan(decimal.NewFromInt(1)) {
		return shared.InvalidInput("Fast capacity share must be within [0, 1]")
	}
	if p.PeakMultiplier.LessThan(decimal.NewFromInt(1)) {
		return shared.InvalidInput("Peak multiplier must be at least 1")
	}
	return nil
}

// ReorderDecision is the outcome of one evaluation.
type ReorderDecision struct {
	Class          VelocityClass   `json:"velocity_class"`
	Threshold      decimal.Decimal `json:"threshold"`
	AlertWarranted bool            `json:"alert_warranted"`
	Kind           AlertKind       `json:"alert_kind,omitempty"`
}

// ReorderCalculator is the single source of reorder thresholds.
type ReorderCalculator struct {
	policy ReorderPolicy
}

// NewReorderCalculator creates a calculator for policy.
func NewReorderCalculator(policy ReorderPolicy) *ReorderCalculator {
	return &ReorderCalculator{policy: policy}
}

// Policy returns the calculator's policy.
func (c *ReorderCalculator) Policy() ReorderPolicy {
	return c.policy
}

// Evaluate decides whether total stock warrants a reorder alert given the
// estimated capacity and the product's velocity class.
func (c *ReorderCalculator) Evaluate(total, capacity int64, class VelocityClass) ReorderDecision {
	floor := decimal.NewFromInt(c.policy.SafetyFloor)
	if total < c.policy.SafetyFloor {
		return ReorderDecision{
			Class:          class,
			Threshold:      floor,
			AlertWarranted: true,
			Kind:           AlertKindBelowSafetyFloor,
		}
	}
	if class != VelocityFast {
		return ReorderDecision{Class: class, Threshold: floor}
	}

	threshold := c.FastMoverThreshold(capacity)
	decision := ReorderDecision{Class: class, Threshold: threshold}
	if decimal.NewFromInt(total).LessThanOrEqual(threshold) {
		decision.AlertWarranted = true
		decision.Kind = AlertKindFastMoverReorder
	}
	return decision
}

// FastMoverThreshold is max(share*C, minimum) capped at min(C/2, cap).
func (c *ReorderCalculator) FastMoverThreshold(capacity int64) decimal.Decimal {
	capacityDec := decimal.NewFromInt(capacity)
	r := decimal.Max(c.policy.FastCapacityShare.Mul(capacityDec), decimal.NewFromInt(c.policy.FastMinimum))
	ceiling := decimal.Min(capacityDec.Div(decimal.NewFromInt(2)), decimal.NewFromInt(c.policy.FastCap))
	return decimal.Min(r, ceiling)
}

// EstimateCapacity returns the configured capacity when set, otherwise the
// largest of the peak with headroom, a multiple of display capacity and the floor.
func (c *ReorderCalculator) EstimateCapacity(configured *int64, peak, displayCapacity int64) int64 {
	if configured != nil && *configured > 0 {
		return *configured
	}
	fromPeak := c.policy.PeakMultiplier.Mul(decimal.NewFromInt(peak)).Ceil().IntPart()
	return max(fromPeak, c.policy.DisplayMultiplier*displayCapacity, c.policy.CapacityFloor)
}
