package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSideBook_BidOrdering(t *testing.T) {
	book := NewBidBook()

	book.GetOrCreate(99)
	book.GetOrCreate(101)
	book.GetOrCreate(100)

	best := book.Best()
	require.NotNil(t, best)
	assert.Equal(t, uint64(101), best.Price, "bids order highest price first")
}

func TestSideBook_AskOrdering(t *testing.T) {
	book := NewAskBook()

	book.GetOrCreate(101)
	book.GetOrCreate(99)
	book.GetOrCreate(100)

	best := book.Best()
	require.NotNil(t, best)
	assert.Equal(t, uint64(99), best.Price, "asks order lowest price first")
}

func TestSideBook_GetOrCreate_ReusesExistingLevel(t *testing.T) {
	book := NewBidBook()

	first := book.GetOrCreate(100)
	second := book.GetOrCreate(100)

	assert.Same(t, first, second)
}

func TestSideBook_EraseEmpty_RemovesOnlyWhenDrained(t *testing.T) {
	book := NewBidBook()
	level := book.GetOrCreate(100)
	order := &Order{OrderID: 1, RemainingQuantity: 5, Price: 100}
	require.NoError(t, level.Add(order))

	book.EraseEmpty(level)
	assert.NotNil(t, book.Get(100), "level still has volume, must not be erased")

	require.NoError(t, level.Remove(order))
	book.EraseEmpty(level)
	assert.Nil(t, book.Get(100), "drained level must be erased")
}

func TestSideBook_Levels_ReturnsBestFirst(t *testing.T) {
	book := NewAskBook()
	book.GetOrCreate(102)
	book.GetOrCreate(100)
	book.GetOrCreate(101)

	levels := book.Levels()
	require.Len(t, levels, 3)
	assert.Equal(t, []uint64{100, 101, 102}, []uint64{levels[0].Price, levels[1].Price, levels[2].Price})
}
