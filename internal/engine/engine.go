// Package engine implements the single-symbol, single-threaded limit order
// book matching engine: price-time priority, Add/Cancel/Modify commands, and
// a stream of trade and book-state events delivered to registered
// observers.
package engine

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"matchbook/internal/common"
)

// OrderBook is the matching engine: it orchestrates the order index
// and the two side books, validates commands, matches aggressors against
// resting liquidity, and emits events through its observer registry.
//
// OrderBook is not safe for concurrent use. Scheduling is single-threaded
// cooperative: one logical thread owns the book, and every command runs to
// completion before the next is accepted. The only reentrancy the book
// tolerates is an observer issuing a new command from inside one of its
// callbacks — those are queued on pending and drained once the triggering
// command finishes, so the book is never mutated mid-update.
type OrderBook struct {
	bids *SideBook
	asks *SideBook

	index     *OrderIndex
	observers *observerRegistry
	execIDs   *IDGenerator
	clock     Clock

	processing bool
	pending    []func()
}

// New constructs an empty order book. execIDs and clock are injected so
// tests can drive deterministic execution ids and timestamps; pass nil for
// either to get the default atomic counter / wall clock.
func New(execIDs *IDGenerator, clock Clock) *OrderBook {
	if execIDs == nil {
		execIDs = NewIDGenerator()
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	return &OrderBook{
		bids:      NewBidBook(),
		asks:      NewAskBook(),
		index:     newOrderIndex(),
		observers: newObserverRegistry(),
		execIDs:   execIDs,
		clock:     clock,
	}
}

// RegisterObserver adds observer to the fan-out, calls its OnInit, and
// returns an opaque client_id usable with UnregisterObserver.
func (b *OrderBook) RegisterObserver(observer Observer) uint64 {
	return b.observers.Register(observer)
}

// UnregisterObserver removes the observer registered under clientID and
// calls its OnShutdown.
func (b *OrderBook) UnregisterObserver(clientID uint64) {
	b.observers.Unregister(clientID)
}

// Shutdown tears the book down: every remaining resting order is released
// and every registered observer's OnShutdown is invoked.
func (b *OrderBook) Shutdown() {
	for _, reg := range b.observers.snapshot() {
		reg := reg
		safeCall(reg.clientID, "on_shutdown", func() { reg.observer.OnShutdown() })
	}
	b.observers.registrations = nil
	b.bids = NewBidBook()
	b.asks = NewAskBook()
	b.index = newOrderIndex()
}

// run executes fn as the current command if the book is idle, or queues it
// to run after the in-flight command (and its notifications) finish, if
// called re-entrantly from inside an observer callback.
func (b *OrderBook) run(fn func()) {
	if b.processing {
		b.pending = append(b.pending, fn)
		return
	}
	b.processing = true
	fn()
	b.processing = false

	for len(b.pending) > 0 {
		next := b.pending[0]
		b.pending = b.pending[1:]
		b.processing = true
		next()
		b.processing = false
	}
}

// AddOrder submits a new limit order, stamping both ts_received and
// ts_executed with the book's clock. Returns an error if rejected, in which
// case an OrderRejected event is emitted as well.
func (b *OrderBook) AddOrder(orderID, userID uint64, side common.Side, quantity, price uint64) error {
	now := b.clock.Now()
	return b.AddOrderAt(orderID, userID, side, quantity, price, now, now)
}

// AddOrderAt submits a new limit order with caller-supplied timestamps,
// e.g. when replaying historical order flow.
func (b *OrderBook) AddOrderAt(orderID, userID uint64, side common.Side, quantity, price, tsReceived, tsExecuted uint64) error {
	var result error
	b.run(func() {
		result = b.doAddOrder(orderID, userID, side, quantity, price, tsReceived, tsExecuted)
	})
	return result
}

func (b *OrderBook) doAddOrder(orderID, userID uint64, side common.Side, quantity, price, tsReceived, tsExecuted uint64) error {
	if quantity == 0 {
		return b.reject(orderID, common.ErrInvalidArgument, "quantity must be positive")
	}
	if b.index.Has(orderID) {
		return b.reject(orderID, common.ErrDuplicateOrder, "order id already exists")
	}

	incoming := &Order{
		OrderID:           orderID,
		UserID:            userID,
		Side:              side,
		RemainingQuantity: quantity,
		Price:             price,
		TsReceived:        tsReceived,
		TsExecuted:        tsExecuted,
	}

	for _, trade := range b.match(incoming) {
		b.observers.broadcastTrade(trade)
	}

	if incoming.RemainingQuantity > 0 {
		b.rest(incoming)
		b.observers.broadcastAcknowledged(orderID)
	}

	b.notifyTopOfBook()
	return nil
}

// CancelOrder removes a resting order from the book.
func (b *OrderBook) CancelOrder(orderID uint64) error {
	var result error
	b.run(func() {
		result = b.doCancelOrder(orderID)
	})
	return result
}

func (b *OrderBook) doCancelOrder(orderID uint64) error {
	order, ok := b.index.Get(orderID)
	if !ok {
		return b.reject(orderID, common.ErrNotFound, "order id not found")
	}

	// A live index entry must always carry a back-link into its resting
	// price level. A nil back-link here means the index and a price
	// level's queue have fallen out of sync, which is a bug in the engine
	// itself rather than a recoverable input error.
	if !order.Resting() {
		panic(fmt.Sprintf("matchbook: invariant violation: order %d is indexed but not resting", orderID))
	}

	level := order.level
	side := b.sideOf(order.Side)
	if err := level.Remove(order); err != nil {
		panic(fmt.Sprintf("matchbook: invariant violation removing order %d: %v", orderID, err))
	}
	side.EraseEmpty(level)
	b.index.Delete(orderID)

	b.observers.broadcastCancelled(orderID)
	b.notifyTopOfBook()
	return nil
}

// ModifyOrder replaces an existing resting order's quantity and/or price,
// preserving identity. Priority is preserved only for a pure quantity
// reduction at the same price, which is applied in place; any other change
// removes the order and re-submits it.
func (b *OrderBook) ModifyOrder(orderID, newQuantity, newPrice uint64) error {
	var result error
	b.run(func() {
		result = b.doModifyOrder(orderID, newQuantity, newPrice)
	})
	return result
}

func (b *OrderBook) doModifyOrder(orderID, newQuantity, newPrice uint64) error {
	if newQuantity == 0 {
		return b.reject(orderID, common.ErrInvalidArgument, "modified order quantity must be positive")
	}

	existing, ok := b.index.Get(orderID)
	if !ok {
		return b.reject(orderID, common.ErrNotFound, "order id not found")
	}
	if !existing.Resting() {
		return b.reject(orderID, common.ErrCannotModifyFilled, "cannot modify an order that is no longer resting")
	}

	oldPrice := existing.Price
	oldQuantity := existing.RemainingQuantity

	// A pure quantity reduction at the same price preserves time priority:
	// the order was already resting without crossing, and shrinking it
	// can't newly cross, so it is mutated in place rather than unlinked
	// and re-queued at the tail.
	if newPrice == oldPrice && newQuantity <= oldQuantity {
		level := existing.level
		level.TotalVolume -= oldQuantity - newQuantity
		existing.RemainingQuantity = newQuantity

		b.observers.broadcastModified(orderID, newQuantity, newPrice)
		b.notifyTopOfBook()
		return nil
	}

	return b.replaceOrder(existing, newQuantity, newPrice)
}

// replaceOrder implements the non-priority-preserving modify path: the
// order is removed from its current position, stamped with a fresh
// ts_executed, and re-submitted as if newly arrived — it may cross the book
// and, if any quantity survives, rests at the tail of its new level's queue.
func (b *OrderBook) replaceOrder(existing *Order, newQuantity, newPrice uint64) error {
	orderID := existing.OrderID
	userID := existing.UserID
	side := existing.Side
	tsReceived := existing.TsReceived

	level := existing.level
	book := b.sideOf(side)
	if err := level.Remove(existing); err != nil {
		panic(fmt.Sprintf("matchbook: invariant violation removing order %d during modify: %v", orderID, err))
	}
	book.EraseEmpty(level)
	b.index.Delete(orderID)

	replacement := &Order{
		OrderID:           orderID,
		UserID:            userID,
		Side:              side,
		RemainingQuantity: newQuantity,
		Price:             newPrice,
		TsReceived:        tsReceived,
		TsExecuted:        b.clock.Now(),
	}

	for _, trade := range b.match(replacement) {
		b.observers.broadcastTrade(trade)
	}

	if replacement.RemainingQuantity > 0 {
		b.rest(replacement)
		b.observers.broadcastModified(orderID, newQuantity, newPrice)
	}

	b.notifyTopOfBook()
	return nil
}

// match walks the opposite side from best outward, filling incoming against
// resting liquidity that crosses, purging fully-filled makers from the
// index and their emptied levels from the side book.
func (b *OrderBook) match(incoming *Order) []common.Trade {
	opposite := b.oppositeOf(incoming.Side)

	var trades []common.Trade
	for incoming.RemainingQuantity > 0 {
		level := opposite.Best()
		if level == nil || !crosses(incoming, level.Price) {
			break
		}

		fillQty := min(incoming.RemainingQuantity, level.TotalVolume)
		levelTrades := level.FillAgainst(incoming, fillQty, b.execIDs.Next)

		for _, trade := range levelTrades {
			if resting, ok := b.index.Get(trade.RestingOrderID); ok && resting.RemainingQuantity == 0 {
				b.index.Delete(trade.RestingOrderID)
			}
		}

		trades = append(trades, levelTrades...)
		incoming.RemainingQuantity -= fillQty

		opposite.EraseEmpty(level)
	}
	return trades
}

// rest inserts order's residual quantity into the index and its side book.
func (b *OrderBook) rest(order *Order) {
	b.index.Put(order)
	level := b.sideOf(order.Side).GetOrCreate(order.Price)
	if err := level.Add(order); err != nil {
		panic(fmt.Sprintf("matchbook: invariant violation resting order %d: %v", order.OrderID, err))
	}
}

func (b *OrderBook) reject(orderID uint64, kind error, reason string) error {
	log.Debug().Uint64("order_id", orderID).Err(kind).Str("reason", reason).Msg("order rejected")
	b.observers.broadcastRejected(orderID, reason)
	return common.NewRejectedError(orderID, kind, reason)
}

func (b *OrderBook) notifyTopOfBook() {
	bestBid, bidVolume := topOf(b.bids)
	bestAsk, askVolume := topOf(b.asks)
	b.observers.broadcastTopOfBook(bestBid, bestAsk, bidVolume, askVolume)
}

func (b *OrderBook) sideOf(side common.Side) *SideBook {
	if side == common.Buy {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) oppositeOf(side common.Side) *SideBook {
	if side == common.Buy {
		return b.asks
	}
	return b.bids
}

func crosses(incoming *Order, levelPrice uint64) bool {
	if incoming.Side == common.Buy {
		return incoming.Price >= levelPrice
	}
	return incoming.Price <= levelPrice
}

func topOf(side *SideBook) (price, volume uint64) {
	level := side.Best()
	if level == nil {
		return 0, 0
	}
	return level.Price, level.TotalVolume
}

// --- Query operations ---

// BestBid returns the highest resting buy price and whether one exists —
// the engine distinguishes "no bids" from "best bid is legitimately 0",
// unlike the raw wire/event contract which still uses 0 as its empty
// sentinel.
func (b *OrderBook) BestBid() (price uint64, ok bool) {
	level := b.bids.Best()
	if level == nil {
		return 0, false
	}
	return level.Price, true
}

// BestAsk returns the lowest resting sell price and whether one exists.
func (b *OrderBook) BestAsk() (price uint64, ok bool) {
	level := b.asks.Best()
	if level == nil {
		return 0, false
	}
	return level.Price, true
}

// TotalBidVolume sums TotalVolume over every level of the bid side.
func (b *OrderBook) TotalBidVolume() uint64 {
	return b.bids.TotalVolume()
}

// TotalAskVolume sums TotalVolume over every level of the ask side.
func (b *OrderBook) TotalAskVolume() uint64 {
	return b.asks.TotalVolume()
}

// Spread returns best-ask minus best-bid, or 0 if either side is empty.
func (b *OrderBook) Spread() uint64 {
	bid, bidOK := b.BestBid()
	ask, askOK := b.BestAsk()
	if !bidOK || !askOK {
		return 0
	}
	return ask - bid
}

// MidPrice returns the average of best bid and best ask, or 0 if either
// side is empty.
func (b *OrderBook) MidPrice() uint64 {
	bid, bidOK := b.BestBid()
	ask, askOK := b.BestAsk()
	if !bidOK || !askOK {
		return 0
	}
	return (bid + ask) / 2
}

// OrderCount returns the number of live orders tracked by the index — used
// by tests to check invariant (1).
func (b *OrderBook) OrderCount() int {
	return b.index.Len()
}
