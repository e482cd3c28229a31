package engine

import (
	"fmt"

	"matchbook/internal/common"
)

// PriceLevel is a FIFO queue of resting orders at one price. It is
// created lazily on first Add at that price and destroyed the instant its
// TotalVolume reaches zero.
type PriceLevel struct {
	Price       uint64
	TotalVolume uint64

	head, tail *Order
	length     int
}

// Add appends order to the tail of the queue, in arrival order, and adopts
// order's price if this is the first order at the level.
func (l *PriceLevel) Add(order *Order) error {
	if order == nil {
		return fmt.Errorf("%w: cannot add nil order to price level", common.ErrInvalidArgument)
	}

	if l.length == 0 {
		l.Price = order.Price
	}

	order.prev = l.tail
	order.next = nil
	if l.tail != nil {
		l.tail.next = order
	} else {
		l.head = order
	}
	l.tail = order

	order.level = l
	l.TotalVolume += order.RemainingQuantity
	l.length++
	return nil
}

// Remove deletes the specific referenced order from the queue in O(1) using
// its intrusive prev/next links, and clears the order's back-link.
func (l *PriceLevel) Remove(order *Order) error {
	if order == nil || order.level != l {
		return fmt.Errorf("%w: order not queued in this price level", common.ErrNotFound)
	}

	if order.prev != nil {
		order.prev.next = order.next
	} else {
		l.head = order.next
	}
	if order.next != nil {
		order.next.prev = order.prev
	} else {
		l.tail = order.prev
	}

	l.TotalVolume -= order.RemainingQuantity
	l.length--

	order.level = nil
	order.prev = nil
	order.next = nil
	return nil
}

// Empty reports whether the level currently holds no orders.
func (l *PriceLevel) Empty() bool {
	return l.length == 0
}

// Len returns the number of orders currently queued at this level.
func (l *PriceLevel) Len() int {
	return l.length
}

// Head returns the order at the front of the FIFO queue, or nil if empty.
func (l *PriceLevel) Head() *Order {
	return l.head
}

// Orders returns the queue's contents in arrival (time-priority) order. It
// allocates; callers on the hot matching path should prefer Head()/Remove().
func (l *PriceLevel) Orders() []*Order {
	orders := make([]*Order, 0, l.length)
	for o := l.head; o != nil; o = o.next {
		orders = append(orders, o)
	}
	return orders
}

// FillAgainst consumes up to quantity of aggregate resting volume from the
// head of the queue, strictly in FIFO order, producing one Trade per maker
// touched. For every order fully drained, the caller is responsible
// for purging it from the OrderIndex — FillAgainst only unlinks it from this
// level's queue.
//
// genExecID mints the execution_id for each trade produced; it is injected
// so callers can control uniqueness/ordering.
func (l *PriceLevel) FillAgainst(aggressor *Order, quantity uint64, genExecID func() uint64) []common.Trade {
	var trades []common.Trade
	if quantity == 0 {
		return trades
	}

	remaining := quantity
	for remaining > 0 {
		head := l.head
		if head == nil {
			break
		}

		fillQty := min(remaining, head.RemainingQuantity)

		trades = append(trades, common.Trade{
			ExecutionID:      genExecID(),
			AggressorOrderID: aggressor.OrderID,
			RestingOrderID:   head.OrderID,
			AggressorUserID:  aggressor.UserID,
			RestingUserID:    head.UserID,
			Price:            l.Price,
			Quantity:         fillQty,
			TsReceived:       aggressor.TsReceived,
			TsExecuted:       aggressor.TsExecuted,
		})

		head.RemainingQuantity -= fillQty
		l.TotalVolume -= fillQty
		remaining -= fillQty

		if head.RemainingQuantity == 0 {
			l.head = head.next
			if l.head != nil {
				l.head.prev = nil
			} else {
				l.tail = nil
			}
			l.length--
			head.level = nil
			head.next = nil
			head.prev = nil
		}
	}

	return trades
}
