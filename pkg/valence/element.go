package valence

// Kind tags an Element as a real chemical species or the virtual charge
// compensator.
type Kind uint8

const (
	// KindReal is a chemical element from the periodic table.
	KindReal Kind = iota
	// KindCompensator is the pseudo-element absorbing residual charge on
	// oxygen sites.
	KindCompensator
)

// CompensatorSymbol is the display symbol of the compensator. It never
// collides with a real element because Element equality includes the Kind.
const CompensatorSymbol = "X"

// Element identifies one species taking part in a solve.
// The zero value is not a valid element.
type Element struct {
	kind   Kind
	symbol string
}

// Real returns the element for a chemical symbol.
func Real(symbol string) Element {
	return Element{kind: KindReal, symbol: symbol}
}

// Compensator is the virtual charge-compensation element.
var Compensator = Element{kind: KindCompensator, symbol: CompensatorSymbol}

// Kind returns the element's tag.
func (e Element) Kind() Kind { return e.kind }

// Symbol returns the chemical symbol, or CompensatorSymbol.
func (e Element) Symbol() string { return e.symbol }

// IsCompensator reports whether e is the virtual compensator.
func (e Element) IsCompensator() bool { return e.kind == KindCompensator }

func (e Element) String() string {
	if e.kind == KindCompensator {
		return "compensator(" + e.symbol + ")"
	}
	return e.symbol
}
