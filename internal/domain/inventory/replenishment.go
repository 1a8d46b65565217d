package inventory

// ReplenishmentPlan is the decision for one display location.
type ReplenishmentPlan struct {
	Triggered bool
	Quantity  int64
}

// PlanReplenishment decides how much to move from backing stock to a display
// location. It triggers when the display quantity is at or below the minimum
// threshold and backing stock exists, and tops the display up toward capacity.
func PlanReplenishment(displayQuantity, minThreshold, capacity, backingAvailable int64) ReplenishmentPlan {
	if displayQuantity > minThreshold || backingAvailable <= 0 {
		return ReplenishmentPlan{}
	}
	room := capacity - displayQuantity
	if room <= 0 {
		return ReplenishmentPlan{}
	}
	return ReplenishmentPlan{Triggered: true, Quantity: min(room, backingAvailable)}
}
