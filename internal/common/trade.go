package common

import "fmt"

// Trade is an immutable, ephemeral description of one fill. It is
// produced during matching and published to observers; the engine never
// stores it.
type Trade struct {
	ExecutionID      uint64
	AggressorOrderID uint64
	RestingOrderID   uint64
	AggressorUserID  uint64
	RestingUserID    uint64
	Price            uint64 // always the resting (maker) order's price, not the aggressor's
	Quantity         uint64
	TsReceived       uint64
	TsExecuted       uint64
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"execution_id=%d aggressor=%d resting=%d price=%d qty=%d",
		t.ExecutionID, t.AggressorOrderID, t.RestingOrderID, t.Price, t.Quantity,
	)
}
