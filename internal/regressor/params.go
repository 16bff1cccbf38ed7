package regressor

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Params 하이퍼파라미터 (int / float64 / string 값)
type Params map[string]any

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy (values are scalars).
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns p overlaid with other.
func (p Params) Merge(other Params) Params {
	out := p.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Float reads a numeric parameter.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return def, fmt.Errorf("parameter %q: expected number, got %T", key, v)
	}
}

// Int reads an integer parameter; whole floats (from JSON) are accepted.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return def, fmt.Errorf("parameter %q: expected integer, got %v", key, n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	default:
		return def, fmt.Errorf("parameter %q: expected integer, got %T", key, v)
	}
}

// String reads a categorical parameter.
func (p Params) String(key, def string) (string, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return def, fmt.Errorf("parameter %q: expected string, got %T", key, v)
	}
	return s, nil
}

// checkKeys rejects keys that are not in accepted.
func checkKeys(p Params, accepted Params) error {
	for k := range p {
		if _, ok := accepted[k]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownParam, k)
		}
	}
	return nil
}

// paramReader accumulates the first conversion error.
type paramReader struct {
	p   Params
	err error
}

func (r *paramReader) float(key string, def float64) float64 {
	v, err := r.p.Float(key, def)
	if err != nil && r.err == nil {
		r.err = err
	}
	return v
}

func (r *paramReader) int(key string, def int) int {
	v, err := r.p.Int(key, def)
	if err != nil && r.err == nil {
		r.err = err
	}
	return v
}

func (r *paramReader) str(key, def string, allowed ...string) string {
	v, err := r.p.String(key, def)
	if err != nil && r.err == nil {
		r.err = err
		return v
	}
	if len(allowed) > 0 && r.err == nil {
		for _, a := range allowed {
			if v == a {
				return v
			}
		}
		r.err = fmt.Errorf("parameter %q: %q not in %v", key, v, allowed)
	}
	return v
}
