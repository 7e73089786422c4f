package core

// Params is the canonical parameter/context mapping every component
// operates on once normalization has run (spec.md §3's "params-mapping"/
// "context-mapping", §4.1 step 1).
type Params map[string]interface{}

// KV is an ordered key-value pair, the Go stand-in for the "key-value
// list" shorthand spec.md §4.1 step 1 accepts alongside a plain mapping.
type KV struct {
	Key   string
	Value interface{}
}

// Clone returns a shallow copy so callers can merge into a running
// params map (spec.md §4.8 "merged into the running params") without
// mutating the caller's original map.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a new Params with other's keys overlaid on p's (other
// wins on conflict). Neither input is mutated.
func (p Params) Merge(other Params) Params {
	out := p.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// NormalizeParams accepts a Params map, a []KV key-value list, or nil,
// and returns the canonical mapping. Anything else is a ValidationError
// (spec.md §4.1 step 1: "reject anything else with ValidationError").
func NormalizeParams(input interface{}) (Params, *Error) {
	switch v := input.(type) {
	case nil:
		return Params{}, nil
	case Params:
		return v.Clone(), nil
	case map[string]interface{}:
		return Params(v).Clone(), nil
	case []KV:
		out := make(Params, len(v))
		for _, kv := range v {
			out[kv.Key] = kv.Value
		}
		return out, nil
	default:
		return nil, NewError(ValidationError, "params must be a mapping or key-value list", map[string]interface{}{
			"got": typeName(input),
		})
	}
}
