// Command demo drives the matching engine in-process, no networking: it
// registers a logging observer and runs through the book's core scenarios
// (a full cross, a partial fill, a multi-level walk, time priority, and
// both flavors of modify) while periodically logging book depth.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"matchbook/internal/common"
	"matchbook/internal/engine"
	"matchbook/internal/server"
)

// loggingObserver prints every engine event as it happens using structured
// logging fields.
type loggingObserver struct{}

func (loggingObserver) Name() string { return "demo-logger" }

func (loggingObserver) OnInit()     { log.Info().Msg("observer attached") }
func (loggingObserver) OnShutdown() { log.Info().Msg("observer detached") }

func (loggingObserver) OnTradeExecuted(t common.Trade) {
	log.Info().
		Uint64("execution_id", t.ExecutionID).
		Uint64("aggressor", t.AggressorOrderID).
		Uint64("resting", t.RestingOrderID).
		Uint64("price", t.Price).
		Uint64("quantity", t.Quantity).
		Msg("trade executed")
}

func (loggingObserver) OnOrderAcknowledged(orderID uint64) {
	log.Info().Uint64("order_id", orderID).Msg("order acknowledged")
}

func (loggingObserver) OnOrderCancelled(orderID uint64) {
	log.Info().Uint64("order_id", orderID).Msg("order cancelled")
}

func (loggingObserver) OnOrderModified(orderID, newQuantity, newPrice uint64) {
	log.Info().Uint64("order_id", orderID).Uint64("quantity", newQuantity).Uint64("price", newPrice).Msg("order modified")
}

func (loggingObserver) OnOrderRejected(orderID uint64, reason string) {
	log.Warn().Uint64("order_id", orderID).Str("reason", reason).Msg("order rejected")
}

func (loggingObserver) OnTopOfBookUpdate(bestBid, bestAsk, bidVolume, askVolume uint64) {
	log.Debug().
		Uint64("best_bid", bestBid).
		Uint64("best_ask", bestAsk).
		Uint64("bid_volume", bidVolume).
		Uint64("ask_volume", askVolume).
		Msg("top of book")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	book := engine.New(nil, nil)
	book.RegisterObserver(loggingObserver{})

	sup := server.New(ctx)
	server.RunEvery(sup, 2*time.Second, func() {
		log.Info().
			Uint64("bid_volume", book.TotalBidVolume()).
			Uint64("ask_volume", book.TotalAskVolume()).
			Uint64("spread", book.Spread()).
			Int("order_count", book.OrderCount()).
			Msg("book depth")
	})

	runScenarios(book)

	<-ctx.Done()
	_ = sup.Shutdown()
}

// runScenarios exercises the engine's core invariants directly, narrated by
// the registered observer.
func runScenarios(book *engine.OrderBook) {
	log.Info().Msg("scenario: multi-level walk with time priority")

	must(book.AddOrder(1, 101, common.Sell, 5, 100))
	must(book.AddOrder(2, 102, common.Sell, 5, 100))
	must(book.AddOrder(3, 103, common.Sell, 5, 101))

	// A marketable buy that fully crosses level 100 by time priority before
	// walking up to level 101.
	must(book.AddOrder(4, 104, common.Buy, 12, 101))

	log.Info().Msg("scenario: partial fill leaves a resting remainder")
	must(book.AddOrder(5, 105, common.Sell, 10, 102))
	must(book.AddOrder(6, 106, common.Buy, 4, 102))

	log.Info().Msg("scenario: modify preserves time priority on a pure reduction")
	must(book.AddOrder(7, 107, common.Buy, 20, 99))
	must(book.ModifyOrder(7, 10, 99))

	log.Info().Msg("scenario: modify with a price change loses priority and may cross")
	must(book.AddOrder(8, 108, common.Sell, 5, 103))
	must(book.ModifyOrder(7, 10, 103))

	log.Info().Msg("scenario: cancel removes a resting order")
	must(book.AddOrder(9, 109, common.Buy, 3, 50))
	must(book.CancelOrder(9))
}

func must(err error) {
	if err != nil {
		log.Warn().Err(err).Msg("scenario command rejected")
	}
}
