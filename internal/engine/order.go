package engine

import "matchbook/internal/common"

// Order is the engine's resting-order record. The engine exclusively
// owns it: it lives from Add acceptance until it is fully filled, cancelled,
// or replaced by Modify.
//
// level, prev, and next form an intrusive, doubly-linked queue: level is a
// non-owning back-link to the PriceLevel currently holding the order, and
// prev/next thread it into that level's FIFO queue, giving O(1) removal by
// id without a separate position-lookup structure.
type Order struct {
	OrderID           uint64
	UserID            uint64
	Side              common.Side
	RemainingQuantity uint64
	Price             uint64
	TsReceived        uint64
	TsExecuted        uint64

	level      *PriceLevel
	prev, next *Order
}

// Resting reports whether the order still carries a back-link into a price
// level. A live OrderIndex entry must always have one; a nil back-link on an
// indexed order means the index and the level's queue have fallen out of
// sync.
func (o *Order) Resting() bool {
	return o.level != nil
}
