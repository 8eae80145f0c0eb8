// Package quotes fetches current price and percent change for ticker symbols
// from an external quote page, tolerating per-symbol failure.
package quotes

import (
	"encoding/json"
	"strconv"
)

// Unavailable is what an unresolved value renders as.
const Unavailable = "N/A"

// Value is either a resolved numeric quote field or an explicit unresolved
// marker. The tagged form keeps downstream display code from treating the
// sentinel as data.
type Value struct {
	num      float64
	resolved bool
}

// Resolved returns a resolved value.
func Resolved(v float64) Value {
	return Value{num: v, resolved: true}
}

// Unresolved returns the unresolved marker.
func Unresolved() Value {
	return Value{}
}

// OK reports whether the value was resolved.
func (v Value) OK() bool {
	return v.resolved
}

// Float returns the numeric value and whether it was resolved.
func (v Value) Float() (float64, bool) {
	return v.num, v.resolved
}

// String renders the value for display: the number, or "N/A" when
// unresolved.
func (v Value) String() string {
	if !v.resolved {
		return Unavailable
	}
	return strconv.FormatFloat(v.num, 'f', -1, 64)
}

// Positive reports whether the value resolved to a non-negative number.
// Used by the dashboard template to pick the up/down style.
func (v Value) Positive() bool {
	return v.resolved && v.num >= 0
}

// MarshalJSON implements json.Marshaler. Resolved values marshal as numbers,
// unresolved values as the "N/A" string, matching the rendered form.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.resolved {
		return json.Marshal(Unavailable)
	}
	return json.Marshal(v.num)
}

// Quote is the fetch result for one symbol. Either both fields are resolved
// or both are unresolved; partial resolution is not produced.
type Quote struct {
	Name   string `json:"name"`
	Price  Value  `json:"price"`
	Change Value  `json:"change"`
}

// Symbol pairs a ticker symbol with its display name. Fetch results preserve
// the order of the input symbol slice.
type Symbol struct {
	Ticker  string
	Display string
}
