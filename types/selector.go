package types

// SelectorKind discriminates the tagged-variant denomination selector
// described in spec §9: the source conflated selection by id-as-string and
// by integer value; the target representation makes the three cases
// explicit instead.
type SelectorKind int

const (
	// SelectorDefault selects the smallest active denomination.
	SelectorDefault SelectorKind = iota
	// SelectorByID selects a denomination by its own id.
	SelectorByID
	// SelectorByValue selects a denomination by its value and currency.
	SelectorByValue
)

// Selector is a tagged variant: exactly one of its fields is meaningful,
// determined by Kind. Construct one with ByID, ByValue, or Default.
type Selector struct {
	Kind           SelectorKind
	DenominationID string
	Value          uint64
	Currency       string
}

// ByID builds a selector that resolves a denomination by its id.
func ByID(denominationID string) Selector {
	return Selector{Kind: SelectorByID, DenominationID: denominationID}
}

// ByValue builds a selector that resolves a denomination by value+currency.
func ByValue(value uint64, currency string) Selector {
	return Selector{Kind: SelectorByValue, Value: value, Currency: currency}
}

// DefaultSelector builds a selector that resolves to the smallest active
// denomination.
func DefaultSelector() Selector {
	return Selector{Kind: SelectorDefault}
}
