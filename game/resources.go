// Package game provides the value types shared by all negotiation games:
// resource holdings, trades, valuations and player goals.
// This package has ZERO dependencies on other negotiarena packages to avoid
// circular imports.
package game

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// MoneyToken is the resource name used for currency in monetary games.
const MoneyToken = "Dollars"

// Resources maps a resource name to a non-negative quantity.
// A resource absent from the map is treated as zero. Arithmetic between two
// Resources is defined key-wise.
type Resources map[string]float64

// NewResources copies the given map into a Resources value.
func NewResources(m map[string]float64) Resources {
	r := make(Resources, len(m))
	for k, v := range m {
		r[k] = v
	}
	return r
}

// Get returns the quantity for name, zero when absent.
func (r Resources) Get(name string) float64 {
	return r[name]
}

// Clone returns an independent copy.
func (r Resources) Clone() Resources {
	return NewResources(r)
}

// Keys returns the resource names in sorted order.
func (r Resources) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Add returns a new Resources with the key-wise sum of r and other.
func (r Resources) Add(other Resources) Resources {
	out := r.Clone()
	for k, v := range other {
		out[k] += v
	}
	return out
}

// Covers reports whether r holds at least the quantities in other.
func (r Resources) Covers(other Resources) bool {
	for k, v := range other {
		if r[k] < v {
			return false
		}
	}
	return true
}

// Sub returns a new Resources with other subtracted key-wise. It fails
// without partial mutation when any resulting quantity would be negative.
func (r Resources) Sub(other Resources) (Resources, error) {
	if !r.Covers(other) {
		return nil, fmt.Errorf("insufficient resources: have %s, need %s", r, other)
	}
	out := r.Clone()
	for k, v := range other {
		out[k] -= v
	}
	return out, nil
}

// Delta returns other-relative change, i.e. r minus initial, key-wise.
// Unlike Sub, negative quantities are allowed in the result.
func (r Resources) Delta(initial Resources) Resources {
	out := r.Clone()
	for k, v := range initial {
		out[k] -= v
	}
	return out
}

// Equal reports key-wise equality, treating absent keys as zero.
func (r Resources) Equal(other Resources) bool {
	for k, v := range r {
		if other[k] != v {
			return false
		}
	}
	for k, v := range other {
		if r[k] != v {
			return false
		}
	}
	return true
}

// IsInteger reports whether every quantity is a whole number.
func (r Resources) IsInteger() bool {
	for _, v := range r {
		if v != math.Trunc(v) {
			return false
		}
	}
	return true
}

// String renders the holdings in the wire form "X: 1, Dollars: 55" with
// keys sorted for stable output.
func (r Resources) String() string {
	parts := make([]string, 0, len(r))
	for _, k := range r.Keys() {
		parts = append(parts, fmt.Sprintf("%s: %s", k, formatQuantity(r[k])))
	}
	return strings.Join(parts, ", ")
}

// ParseResources parses the wire form produced by String. An empty string
// parses to an empty Resources.
func ParseResources(s string) (Resources, error) {
	s = strings.TrimSpace(s)
	r := Resources{}
	if s == "" {
		return r, nil
	}
	for _, part := range strings.Split(s, ",") {
		name, rawQty, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("malformed resource entry %q", strings.TrimSpace(part))
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("empty resource name in %q", part)
		}
		qty, err := strconv.ParseFloat(strings.TrimSpace(rawQty), 64)
		if err != nil {
			return nil, fmt.Errorf("malformed quantity for resource %q: %w", name, err)
		}
		if qty < 0 {
			return nil, fmt.Errorf("negative quantity for resource %q", name)
		}
		r[name] += qty
	}
	return r, nil
}

func formatQuantity(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
