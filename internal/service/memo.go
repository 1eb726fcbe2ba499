package service

import (
	"strconv"
	"unicode/utf8"
)

// MaxMemoLength bounds a transfer memo, counted in runes.
const MaxMemoLength = 250

// Direction is the side of a shop trade from the client's point of view.
type Direction int

const (
	DirectionBuy Direction = iota
	DirectionSell
)

// Trade is the shop transaction a peer transfer pays for.
type Trade struct {
	Client    string
	Owner     string
	Item      string
	Quantity  int
	Direction Direction
	Cancelled bool
}

// FormatTradeMemo renders "<client> bought x<qty> <item> from <owner>" or
// "<client> sold x<qty> <item> to <owner>" in at most MaxMemoLength runes.
// Only the item name is shortened unless the fixed parts alone overflow.
func FormatTradeMemo(t Trade) string {
	verb, joint := " bought x", " from "
	if t.Direction == DirectionSell {
		verb, joint = " sold x", " to "
	}

	prefix := t.Client + verb + strconv.Itoa(t.Quantity) + " "
	suffix := joint + t.Owner
	available := MaxMemoLength - utf8.RuneCountInString(prefix) - utf8.RuneCountInString(suffix)

	if available < 1 {
		return truncateRunes(prefix+suffix, MaxMemoLength)
	}
	return prefix + truncateRunes(t.Item, available) + suffix
}

// TotalQuantity sums the item counts of every stack in a trade.
func TotalQuantity(stacks ...int) int {
	total := 0
	for _, n := range stacks {
		total += n
	}
	return total
}
