package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/internal/common"
)

// testClock is a manually advanced Clock so tests get deterministic,
// distinguishable timestamps instead of wall-clock noise.
type testClock struct {
	now uint64
}

func (c *testClock) Now() uint64 {
	c.now++
	return c.now
}

// createTestOrderBook returns an OrderBook wired with deterministic id and
// clock generators.
func createTestOrderBook() *OrderBook {
	return New(NewIDGenerator(), &testClock{})
}

// recordingObserver captures every event delivered to it, in delivery order,
// so tests can assert on exact event sequencing.
type recordingObserver struct {
	events []string
	trades []common.Trade
}

func (r *recordingObserver) Name() string { return "recording" }
func (r *recordingObserver) OnInit()     {}
func (r *recordingObserver) OnShutdown() {}

func (r *recordingObserver) OnTradeExecuted(trade common.Trade) {
	r.events = append(r.events, "trade")
	r.trades = append(r.trades, trade)
}

func (r *recordingObserver) OnOrderAcknowledged(orderID uint64) {
	r.events = append(r.events, "ack")
}

func (r *recordingObserver) OnOrderCancelled(orderID uint64) {
	r.events = append(r.events, "cancel")
}

func (r *recordingObserver) OnOrderModified(orderID, newQuantity, newPrice uint64) {
	r.events = append(r.events, "modify")
}

func (r *recordingObserver) OnOrderRejected(orderID uint64, reason string) {
	r.events = append(r.events, "reject")
}

func (r *recordingObserver) OnTopOfBookUpdate(bestBid, bestAsk, bidVolume, askVolume uint64) {
	r.events = append(r.events, "top")
}

func TestAddOrder_RestsWhenNothingCrosses(t *testing.T) {
	book := createTestOrderBook()
	rec := &recordingObserver{}
	book.RegisterObserver(rec)

	require.NoError(t, book.AddOrder(1, 100, common.Buy, 10, 99))

	price, ok := book.BestBid()
	require.True(t, ok)
	assert.Equal(t, uint64(99), price)
	assert.Equal(t, []string{"ack", "top"}, rec.events)
	assert.Equal(t, 1, book.OrderCount())
}

func TestAddOrder_FullCross(t *testing.T) {
	book := createTestOrderBook()
	rec := &recordingObserver{}
	book.RegisterObserver(rec)

	require.NoError(t, book.AddOrder(1, 100, common.Sell, 10, 50))
	rec.events = nil

	require.NoError(t, book.AddOrder(2, 200, common.Buy, 10, 50))

	assert.Equal(t, []string{"trade", "top"}, rec.events)
	require.Len(t, rec.trades, 1)
	assert.Equal(t, uint64(2), rec.trades[0].AggressorOrderID)
	assert.Equal(t, uint64(1), rec.trades[0].RestingOrderID)
	assert.Equal(t, uint64(10), rec.trades[0].Quantity)
	assert.Equal(t, uint64(50), rec.trades[0].Price)
	assert.Equal(t, 0, book.OrderCount())

	_, ok := book.BestAsk()
	assert.False(t, ok)
}

func TestAddOrder_PartialFillLeavesRemainder(t *testing.T) {
	book := createTestOrderBook()

	require.NoError(t, book.AddOrder(1, 100, common.Sell, 10, 50))
	require.NoError(t, book.AddOrder(2, 200, common.Buy, 4, 50))

	assert.Equal(t, 1, book.OrderCount())
	assert.Equal(t, uint64(6), book.TotalAskVolume())
}

func TestAddOrder_MultiLevelWalk(t *testing.T) {
	book := createTestOrderBook()

	require.NoError(t, book.AddOrder(1, 1, common.Sell, 5, 100))
	require.NoError(t, book.AddOrder(2, 2, common.Sell, 5, 101))

	rec := &recordingObserver{}
	book.RegisterObserver(rec)

	require.NoError(t, book.AddOrder(3, 3, common.Buy, 10, 101))

	require.Len(t, rec.trades, 2)
	assert.Equal(t, uint64(100), rec.trades[0].Price)
	assert.Equal(t, uint64(101), rec.trades[1].Price)
	assert.Equal(t, 0, book.OrderCount())
}

func TestAddOrder_TimePriorityWithinLevel(t *testing.T) {
	book := createTestOrderBook()

	require.NoError(t, book.AddOrder(1, 1, common.Sell, 5, 100))
	require.NoError(t, book.AddOrder(2, 2, common.Sell, 5, 100))

	rec := &recordingObserver{}
	book.RegisterObserver(rec)

	require.NoError(t, book.AddOrder(3, 3, common.Buy, 5, 100))

	require.Len(t, rec.trades, 1)
	assert.Equal(t, uint64(1), rec.trades[0].RestingOrderID, "earliest resting order at the level fills first")
}

func TestAddOrder_RejectsZeroQuantity(t *testing.T) {
	book := createTestOrderBook()
	rec := &recordingObserver{}
	book.RegisterObserver(rec)

	err := book.AddOrder(1, 1, common.Buy, 0, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	assert.Equal(t, []string{"reject"}, rec.events)
}

func TestAddOrder_RejectsDuplicateID(t *testing.T) {
	book := createTestOrderBook()

	require.NoError(t, book.AddOrder(1, 1, common.Buy, 5, 100))
	err := book.AddOrder(1, 2, common.Sell, 5, 100)

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDuplicateOrder)
}

func TestCancelOrder_IsInverseOfAdd(t *testing.T) {
	book := createTestOrderBook()

	require.NoError(t, book.AddOrder(1, 1, common.Buy, 5, 100))
	require.Equal(t, 1, book.OrderCount())

	require.NoError(t, book.CancelOrder(1))
	assert.Equal(t, 0, book.OrderCount())

	_, ok := book.BestBid()
	assert.False(t, ok)
}

func TestCancelOrder_RejectsUnknownID(t *testing.T) {
	book := createTestOrderBook()

	err := book.CancelOrder(999)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestModifyOrder_PureReductionPreservesPriority(t *testing.T) {
	book := createTestOrderBook()

	require.NoError(t, book.AddOrder(1, 1, common.Sell, 5, 100))
	require.NoError(t, book.AddOrder(2, 2, common.Sell, 5, 100))

	require.NoError(t, book.ModifyOrder(1, 2, 100))

	rec := &recordingObserver{}
	book.RegisterObserver(rec)
	require.NoError(t, book.AddOrder(3, 3, common.Buy, 2, 100))

	require.Len(t, rec.trades, 1)
	assert.Equal(t, uint64(1), rec.trades[0].RestingOrderID, "reduced order keeps its place at the front of the queue")
}

func TestModifyOrder_PriceChangeMovesToTailAndCanCross(t *testing.T) {
	book := createTestOrderBook()

	require.NoError(t, book.AddOrder(1, 1, common.Buy, 10, 99))
	require.NoError(t, book.AddOrder(2, 2, common.Sell, 5, 100))

	require.NoError(t, book.ModifyOrder(1, 10, 100))

	assert.Equal(t, 1, book.OrderCount(), "the modified order crossed and filled the resting ask")
	price, ok := book.BestBid()
	require.True(t, ok)
	assert.Equal(t, uint64(100), price)
}

func TestModifyOrder_RejectsUnknownID(t *testing.T) {
	book := createTestOrderBook()

	err := book.ModifyOrder(999, 5, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestModifyOrder_RejectsZeroQuantity(t *testing.T) {
	book := createTestOrderBook()
	require.NoError(t, book.AddOrder(1, 1, common.Buy, 5, 100))

	err := book.ModifyOrder(1, 0, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestConservationOfVolume(t *testing.T) {
	book := createTestOrderBook()

	require.NoError(t, book.AddOrder(1, 1, common.Sell, 10, 100))
	require.NoError(t, book.AddOrder(2, 2, common.Buy, 4, 100))

	assert.Equal(t, uint64(6), book.TotalAskVolume())
	assert.Equal(t, uint64(0), book.TotalBidVolume())
}

func TestSpreadAndMidPrice(t *testing.T) {
	book := createTestOrderBook()

	assert.Equal(t, uint64(0), book.Spread(), "no spread with an empty book")
	assert.Equal(t, uint64(0), book.MidPrice())

	require.NoError(t, book.AddOrder(1, 1, common.Buy, 5, 98))
	require.NoError(t, book.AddOrder(2, 2, common.Sell, 5, 102))

	assert.Equal(t, uint64(4), book.Spread())
	assert.Equal(t, uint64(100), book.MidPrice())
}

func TestObserverPanicIsIsolated(t *testing.T) {
	book := createTestOrderBook()

	book.RegisterObserver(panickingObserver{})
	rec := &recordingObserver{}
	book.RegisterObserver(rec)

	require.NoError(t, book.AddOrder(1, 1, common.Buy, 5, 100))
	assert.Equal(t, []string{"ack", "top"}, rec.events, "a panicking observer must not stop delivery to the others")
}

type panickingObserver struct{}

func (panickingObserver) Name() string                                     { return "panicking" }
func (panickingObserver) OnInit()                                          {}
func (panickingObserver) OnShutdown()                                      {}
func (panickingObserver) OnTradeExecuted(common.Trade)                     {}
func (panickingObserver) OnOrderAcknowledged(uint64)                       { panic("boom") }
func (panickingObserver) OnOrderCancelled(uint64)                          {}
func (panickingObserver) OnOrderModified(uint64, uint64, uint64)           {}
func (panickingObserver) OnOrderRejected(uint64, string)                   {}
func (panickingObserver) OnTopOfBookUpdate(uint64, uint64, uint64, uint64) { panic("boom") }
