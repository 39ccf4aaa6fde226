package valuation

// Method represents the valuation method assigned to an item
type Method string

const (
	// MethodFIFO consumes cost batches oldest-first
	MethodFIFO Method = "FIFO"
	// MethodLIFO consumes cost batches newest-first
	MethodLIFO Method = "LIFO"
	// MethodWeightedAverage maintains a single blended unit cost,
	// cumulative since item creation
	MethodWeightedAverage Method = "WEIGHTED_AVERAGE"
	// MethodMovingAverage rebases the blended unit cost after every
	// transaction. Numerically this is the same recompute as
	// WeightedAverage; the two are distinct values for audit labeling.
	MethodMovingAverage Method = "MOVING_AVERAGE"
)

// String returns the string representation
func (m Method) String() string {
	return string(m)
}

// IsValid returns true if the method is one of the supported values
func (m Method) IsValid() bool {
	switch m {
	case MethodFIFO, MethodLIFO, MethodWeightedAverage, MethodMovingAverage:
		return true
	}
	return false
}

// IsBatchTracked returns true if the method materializes cost batches
func (m Method) IsBatchTracked() bool {
	return m == MethodFIFO || m == MethodLIFO
}

// IsAveraging returns true if the method maintains a blended unit cost
// instead of discrete batches
func (m Method) IsAveraging() bool {
	return m == MethodWeightedAverage || m == MethodMovingAverage
}

// ConsumptionOrder returns the batch consumption order for batch-tracked
// methods; averaging methods have no meaningful order
func (m Method) ConsumptionOrder() ConsumptionOrder {
	if m == MethodLIFO {
		return NewestFirst
	}
	return OldestFirst
}

// AllMethods returns all supported valuation methods
func AllMethods() []Method {
	return []Method{MethodFIFO, MethodLIFO, MethodWeightedAverage, MethodMovingAverage}
}
