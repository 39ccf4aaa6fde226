package valuation

// MovementType represents the business reason for a stock movement
type MovementType string

const (
	// MovementTypePurchaseIn represents stock received from a purchase
	MovementTypePurchaseIn MovementType = "PURCHASE_IN"
	// MovementTypeProductionIn represents stock produced by manufacturing
	MovementTypeProductionIn MovementType = "PRODUCTION_IN"
	// MovementTypeAdjustmentIn represents a positive stock correction
	MovementTypeAdjustmentIn MovementType = "ADJUSTMENT_IN"
	// MovementTypeTransferIn represents stock transferred in from another location
	MovementTypeTransferIn MovementType = "TRANSFER_IN"
	// MovementTypeSaleOut represents stock issued against a sale
	MovementTypeSaleOut MovementType = "SALE_OUT"
	// MovementTypeConsumptionOut represents stock consumed by manufacturing
	MovementTypeConsumptionOut MovementType = "CONSUMPTION_OUT"
	// MovementTypeAdjustmentOut represents a negative stock correction
	MovementTypeAdjustmentOut MovementType = "ADJUSTMENT_OUT"
	// MovementTypeTransferOut represents stock transferred out to another location
	MovementTypeTransferOut MovementType = "TRANSFER_OUT"
)

// String returns the string representation of MovementType
func (t MovementType) String() string {
	return string(t)
}

// IsValid returns true if the movement type is valid
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypePurchaseIn,
		MovementTypeProductionIn,
		MovementTypeAdjustmentIn,
		MovementTypeTransferIn,
		MovementTypeSaleOut,
		MovementTypeConsumptionOut,
		MovementTypeAdjustmentOut,
		MovementTypeTransferOut:
		return true
	}
	return false
}

// IsInbound returns true if this movement type increases stock.
// Inbound movements must carry a unit cost asserted by the source document.
func (t MovementType) IsInbound() bool {
	switch t {
	case MovementTypePurchaseIn,
		MovementTypeProductionIn,
		MovementTypeAdjustmentIn,
		MovementTypeTransferIn:
		return true
	}
	return false
}

// IsOutbound returns true if this movement type decreases stock.
// Outbound movements never carry a caller-supplied cost; the cost is
// always derived from current item state.
func (t MovementType) IsOutbound() bool {
	switch t {
	case MovementTypeSaleOut,
		MovementTypeConsumptionOut,
		MovementTypeAdjustmentOut,
		MovementTypeTransferOut:
		return true
	}
	return false
}

// IsAdjustment returns true for the two correction movement types.
// Only adjustments may be flagged to permit negative stock.
func (t MovementType) IsAdjustment() bool {
	return t == MovementTypeAdjustmentIn || t == MovementTypeAdjustmentOut
}

// AllMovementTypes returns all valid movement types
func AllMovementTypes() []MovementType {
	return []MovementType{
		MovementTypePurchaseIn,
		MovementTypeProductionIn,
		MovementTypeAdjustmentIn,
		MovementTypeTransferIn,
		MovementTypeSaleOut,
		MovementTypeConsumptionOut,
		MovementTypeAdjustmentOut,
		MovementTypeTransferOut,
	}
}
