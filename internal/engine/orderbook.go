package engine

import "github.com/tidwall/btree"

// SideBook is an ordered map of price -> PriceLevel, with "best" always the
// tree's first element: descending price for bids, ascending for asks.
// Lookup, insert, and erase by price are O(log n) on the distinct-price
// count.
type SideBook struct {
	levels *btree.BTreeG[*PriceLevel]
}

// NewBidBook returns a SideBook ordered highest price first.
func NewBidBook() *SideBook {
	return &SideBook{levels: btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price > b.Price
	})}
}

// NewAskBook returns a SideBook ordered lowest price first.
func NewAskBook() *SideBook {
	return &SideBook{levels: btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price < b.Price
	})}
}

// Best returns the best (first) price level, or nil if the side is empty.
func (s *SideBook) Best() *PriceLevel {
	level, ok := s.levels.Min()
	if !ok {
		return nil
	}
	return level
}

// Get returns the level resting at price, or nil if none exists.
func (s *SideBook) Get(price uint64) *PriceLevel {
	level, ok := s.levels.Get(&PriceLevel{Price: price})
	if !ok {
		return nil
	}
	return level
}

// GetOrCreate returns the level at price, creating and inserting an empty
// one if it doesn't already exist.
func (s *SideBook) GetOrCreate(price uint64) *PriceLevel {
	if level := s.Get(price); level != nil {
		return level
	}
	level := &PriceLevel{Price: price}
	s.levels.Set(level)
	return level
}

// Erase removes the level at price from the book.
func (s *SideBook) Erase(price uint64) {
	s.levels.Delete(&PriceLevel{Price: price})
}

// EraseEmpty removes level from the book if it has gone to zero volume.
// Called after every mutation that can drain a level, per invariant (4).
func (s *SideBook) EraseEmpty(level *PriceLevel) {
	if level != nil && level.Empty() {
		s.Erase(level.Price)
	}
}

// Empty reports whether the side currently holds no price levels.
func (s *SideBook) Empty() bool {
	return s.levels.Len() == 0
}

// TotalVolume sums TotalVolume over every level of this side.
func (s *SideBook) TotalVolume() uint64 {
	var total uint64
	s.levels.Scan(func(level *PriceLevel) bool {
		total += level.TotalVolume
		return true
	})
	return total
}

// Walk iterates levels strictly from best outward, invoking fn on each. Walk
// stops early if fn returns false. This is the iteration order matching uses
// to sweep the opposite side.
func (s *SideBook) Walk(fn func(level *PriceLevel) bool) {
	s.levels.Scan(fn)
}

// Levels returns every level, best first. Allocates; used by tests and
// depth-style queries, not the hot matching path.
func (s *SideBook) Levels() []*PriceLevel {
	levels := make([]*PriceLevel, 0, s.levels.Len())
	s.levels.Scan(func(level *PriceLevel) bool {
		levels = append(levels, level)
		return true
	})
	return levels
}
