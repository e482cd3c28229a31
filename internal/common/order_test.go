package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSide_String(t *testing.T) {
	assert.Equal(t, "buy", Buy.String())
	assert.Equal(t, "sell", Sell.String())
}

func TestRejectedError_UnwrapsToKind(t *testing.T) {
	err := NewRejectedError(42, ErrNotFound, "order id not found")

	assert.Equal(t, "order id not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, uint64(42), err.OrderID)
}
