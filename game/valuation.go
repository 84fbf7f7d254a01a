package game

// Valuation assigns a per-unit utility to each resource name. Valuations are
// immutable after construction and queried, never mutated.
type Valuation map[string]float64

// NewValuation copies the given map into a Valuation.
func NewValuation(m map[string]float64) Valuation {
	v := make(Valuation, len(m))
	for k, val := range m {
		v[k] = val
	}
	return v
}

// Of returns the total value of the holdings under this valuation
// (the dot product of quantities and per-unit values).
func (v Valuation) Of(r Resources) float64 {
	var total float64
	for k, qty := range r {
		total += qty * v[k]
	}
	return total
}
