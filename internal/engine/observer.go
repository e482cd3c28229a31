package engine

import (
	"github.com/rs/zerolog/log"

	"matchbook/internal/common"
)

// Observer is the capability set any subscriber must implement: a name for
// logging/diagnostics, lifecycle hooks, and one callback per event kind.
type Observer interface {
	Name() string
	OnInit()
	OnShutdown()
	OnTradeExecuted(trade common.Trade)
	OnOrderAcknowledged(orderID uint64)
	OnOrderCancelled(orderID uint64)
	OnOrderModified(orderID uint64, newQuantity, newPrice uint64)
	OnOrderRejected(orderID uint64, reason string)
	OnTopOfBookUpdate(bestBid, bestAsk, bidVolume, askVolume uint64)
}

// registration pairs a client id with its observer, so the fan-out can
// iterate in registration order.
type registration struct {
	clientID uint64
	observer Observer
}

// observerRegistry holds zero or more observers keyed by an opaque
// client_id and broadcasts events to all of them in registration order.
// A failure from one observer (panic, recovered) must not prevent delivery
// to the others, nor alter engine state — every dispatch loop below
// recovers per-observer and logs, then continues.
//
// Observers may call back into the engine re-entrantly; the engine guards
// against mutation of this registry during a broadcast by snapshotting the
// registration slice at the start of each dispatch.
type observerRegistry struct {
	registrations []registration
	nextClientID  uint64
}

func newObserverRegistry() *observerRegistry {
	return &observerRegistry{}
}

func (r *observerRegistry) Register(observer Observer) uint64 {
	r.nextClientID++
	clientID := r.nextClientID
	r.registrations = append(r.registrations, registration{clientID: clientID, observer: observer})

	safeCall(clientID, "on_init", func() { observer.OnInit() })
	return clientID
}

func (r *observerRegistry) Unregister(clientID uint64) {
	for i, reg := range r.registrations {
		if reg.clientID == clientID {
			safeCall(clientID, "on_shutdown", func() { reg.observer.OnShutdown() })
			r.registrations = append(r.registrations[:i:i], r.registrations[i+1:]...)
			return
		}
	}
}

// snapshot returns the current registration slice. Copying the underlying
// slice header is all we need: Register only appends past the end of any
// earlier snapshot, and Unregister builds its result from a capacity-capped
// slice so it never shifts elements inside the old backing array. A
// snapshot taken before a broadcast is therefore stable for the life of that
// broadcast even if a re-entrant command changes the live registry.
func (r *observerRegistry) snapshot() []registration {
	return r.registrations
}

func (r *observerRegistry) broadcastTrade(trade common.Trade) {
	for _, reg := range r.snapshot() {
		reg := reg
		safeCall(reg.clientID, "on_trade_executed", func() { reg.observer.OnTradeExecuted(trade) })
	}
}

func (r *observerRegistry) broadcastAcknowledged(orderID uint64) {
	for _, reg := range r.snapshot() {
		reg := reg
		safeCall(reg.clientID, "on_order_acknowledged", func() { reg.observer.OnOrderAcknowledged(orderID) })
	}
}

func (r *observerRegistry) broadcastCancelled(orderID uint64) {
	for _, reg := range r.snapshot() {
		reg := reg
		safeCall(reg.clientID, "on_order_cancelled", func() { reg.observer.OnOrderCancelled(orderID) })
	}
}

func (r *observerRegistry) broadcastModified(orderID, newQuantity, newPrice uint64) {
	for _, reg := range r.snapshot() {
		reg := reg
		safeCall(reg.clientID, "on_order_modified", func() { reg.observer.OnOrderModified(orderID, newQuantity, newPrice) })
	}
}

func (r *observerRegistry) broadcastRejected(orderID uint64, reason string) {
	for _, reg := range r.snapshot() {
		reg := reg
		safeCall(reg.clientID, "on_order_rejected", func() { reg.observer.OnOrderRejected(orderID, reason) })
	}
}

func (r *observerRegistry) broadcastTopOfBook(bestBid, bestAsk, bidVolume, askVolume uint64) {
	for _, reg := range r.snapshot() {
		reg := reg
		safeCall(reg.clientID, "on_top_of_book_update", func() {
			reg.observer.OnTopOfBookUpdate(bestBid, bestAsk, bidVolume, askVolume)
		})
	}
}

// safeCall isolates a single observer callback: a panic is recovered,
// logged, and swallowed so one misbehaving subscriber cannot deny service to
// the others or to the engine itself.
func safeCall(clientID uint64, callback string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Uint64("client_id", clientID).
				Str("callback", callback).
				Interface("panic", r).
				Msg("observer callback failed, isolating and continuing")
		}
	}()
	fn()
}
