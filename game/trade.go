package game

import (
	"fmt"
	"strings"
)

// NoTradeSentinel is the wire value that means "no trade proposed". It must
// never be interpreted as a resource named NONE.
const NoTradeSentinel = "NONE"

// Trade is a proposed exchange between the two players. Gives[i] is what
// player i hands over when the trade is applied. A nil *Trade means no trade.
type Trade struct {
	Labels [2]string
	Gives  [2]Resources
}

// ParseTrade parses the wire form
//
//	Player RED Gives X: 1 | Player BLUE Gives Dollars: 55
//
// against the given player labels. The sentinel "NONE" (and an empty string)
// parses to a nil trade rather than a literal resource.
func ParseTrade(s string, labels [2]string) (*Trade, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, NoTradeSentinel) {
		return nil, nil
	}

	t := &Trade{Labels: labels}
	t.Gives[0] = Resources{}
	t.Gives[1] = Resources{}

	for _, side := range strings.Split(s, "|") {
		side = strings.TrimSpace(side)
		if side == "" {
			continue
		}
		label, body, err := splitTradeSide(side)
		if err != nil {
			return nil, err
		}
		idx := -1
		for i, l := range labels {
			if strings.EqualFold(label, l) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("unknown player %q in trade %q", label, s)
		}
		res, err := ParseResources(body)
		if err != nil {
			return nil, fmt.Errorf("trade side for player %s: %w", label, err)
		}
		t.Gives[idx] = t.Gives[idx].Add(res)
	}

	if len(t.Gives[0]) == 0 && len(t.Gives[1]) == 0 {
		return nil, nil
	}
	return t, nil
}

// splitTradeSide splits "Player RED Gives X: 1" into ("RED", "X: 1").
func splitTradeSide(side string) (label, body string, err error) {
	rest, ok := cutPrefixFold(side, "Player")
	if !ok {
		return "", "", fmt.Errorf("trade side %q does not start with Player", side)
	}
	rest = strings.TrimSpace(rest)
	i := strings.Index(strings.ToLower(rest), "gives")
	if i < 0 {
		return "", "", fmt.Errorf("trade side %q has no Gives clause", side)
	}
	label = strings.TrimSpace(rest[:i])
	body = strings.TrimSpace(rest[i+len("gives"):])
	if label == "" {
		return "", "", fmt.Errorf("trade side %q has no player label", side)
	}
	return label, body, nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

// IsInteger reports whether every quantity on both sides is a whole number.
func (t *Trade) IsInteger() bool {
	return t == nil || (t.Gives[0].IsInteger() && t.Gives[1].IsInteger())
}

// CanApply reports whether both holdings cover their side of the trade.
func (t *Trade) CanApply(holdings [2]Resources) bool {
	if t == nil {
		return false
	}
	return holdings[0].Covers(t.Gives[0]) && holdings[1].Covers(t.Gives[1])
}

// Apply exchanges the traded resources between the two holdings. The trade
// either fully applies, returning the updated holdings, or fails leaving the
// inputs untouched. Resources are swapped, never created or destroyed.
func (t *Trade) Apply(holdings [2]Resources) ([2]Resources, error) {
	if t == nil {
		return holdings, fmt.Errorf("no trade to apply")
	}
	after0, err := holdings[0].Sub(t.Gives[0])
	if err != nil {
		return holdings, fmt.Errorf("player %s: %w", t.Labels[0], err)
	}
	after1, err := holdings[1].Sub(t.Gives[1])
	if err != nil {
		return holdings, fmt.Errorf("player %s: %w", t.Labels[1], err)
	}
	return [2]Resources{after0.Add(t.Gives[1]), after1.Add(t.Gives[0])}, nil
}

// String renders the trade in its wire form. A nil trade renders as the
// NONE sentinel.
func (t *Trade) String() string {
	if t == nil {
		return NoTradeSentinel
	}
	return fmt.Sprintf("Player %s Gives %s | Player %s Gives %s",
		t.Labels[0], t.Gives[0], t.Labels[1], t.Gives[1])
}
