package game

// Goal is a read-only utility function over a Resources delta (final
// holdings minus initial holdings). Goals are immutable after construction
// and queried once per turn to decide termination and success.
type Goal interface {
	// Payoff returns the scalar utility of the given holdings delta.
	Payoff(delta Resources) float64
}

// SellerGoal rewards selling goods above their cost of production.
// The payoff of a delta is the money gained minus the production cost of the
// goods given away.
type SellerGoal struct {
	CostOfProduction Valuation
}

func (g SellerGoal) Payoff(delta Resources) float64 {
	sold := Resources{}
	for k, v := range delta {
		if k != MoneyToken && v < 0 {
			sold[k] = -v
		}
	}
	return delta[MoneyToken] - g.CostOfProduction.Of(sold)
}

// BuyerGoal rewards buying goods below the buyer's willingness to pay.
// The payoff of a delta is the value of the goods gained minus the money
// spent.
type BuyerGoal struct {
	WillingnessToPay Valuation
}

func (g BuyerGoal) Payoff(delta Resources) float64 {
	bought := Resources{}
	for k, v := range delta {
		if k != MoneyToken && v > 0 {
			bought[k] = v
		}
	}
	return g.WillingnessToPay.Of(bought) + delta[MoneyToken]
}

// UltimatumGoal rewards money gained; with no agreement the payoff is zero.
type UltimatumGoal struct{}

func (UltimatumGoal) Payoff(delta Resources) float64 {
	return delta[MoneyToken]
}

// ResourceGoal rewards reaching a target allocation. The payoff is the
// number of target units held, and Satisfied reports full coverage.
type ResourceGoal struct {
	Target Resources
}

func (g ResourceGoal) Payoff(delta Resources) float64 {
	var total float64
	for k, want := range g.Target {
		have := delta[k]
		if have > want {
			have = want
		}
		total += have
	}
	return total
}

// Satisfied reports whether the final holdings cover the target allocation.
func (g ResourceGoal) Satisfied(final Resources) bool {
	return final.Covers(g.Target)
}
