package cpool

import (
	"errors"
	"fmt"
	"slices"

	"github.com/flightrec/flr/errs"
	"github.com/flightrec/flr/value"
)

// Resolve returns the decoded value behind a pool key.
//
// The first resolution decodes the entry and expands every reference
// nested in it; the outcome, value or error, is memoized. Key 0 with no
// entry is the null reference and resolves to value.Null.
//
// Parameters:
//   - typeID: the pool's type id
//   - key: the entry key an event or pool value referenced
//
// Returns:
//   - value.Value: the fully expanded value
//   - error: errs.ErrUnknownConstant for a missing key,
//     errs.ErrCyclicConstantReference when the entry's expansion reaches
//     itself, errs.ErrDepthLimitExceeded past the configured depth
func (r *Resolver) Resolve(typeID, key int64) (value.Value, error) {
	return r.resolve(typeID, key, 0)
}

// ResolveAll resolves every indexed entry and returns the joined failures,
// nil when all pools decode cleanly. Pools and keys are visited in sorted
// order so the joined error reads deterministically.
func (r *Resolver) ResolveAll() error {
	var failures []error

	for _, typeID := range r.TypeIDs() {
		pool := r.pools[typeID]

		keys := make([]int64, 0, len(pool))
		for key := range pool {
			keys = append(keys, key)
		}
		slices.Sort(keys)

		for _, key := range keys {
			if _, err := r.resolve(typeID, key, 0); err != nil {
				failures = append(failures, err)
			}
		}
	}

	return errors.Join(failures...)
}

// Checkpoints returns the loaded checkpoint headers in application order,
// oldest first.
func (r *Resolver) Checkpoints() []Checkpoint {
	return r.checkpoints
}

// TypeIDs returns the pool type ids in ascending order.
func (r *Resolver) TypeIDs() []int64 {
	ids := make([]int64, 0, len(r.pools))
	for id := range r.pools {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

// PoolSize returns the number of distinct keys indexed for a pool type.
func (r *Resolver) PoolSize(typeID int64) int {
	return len(r.pools[typeID])
}

// Has reports whether an entry is indexed under the given pool and key.
func (r *Resolver) Has(typeID, key int64) bool {
	_, ok := r.pools[typeID][key]

	return ok
}

func (r *Resolver) resolve(typeID, key int64, depth int) (value.Value, error) {
	e, ok := r.pools[typeID][key]
	if !ok {
		if key == 0 {
			return value.Null{}, nil
		}

		return nil, fmt.Errorf("%w: pool %d key %d", errs.ErrUnknownConstant, typeID, key)
	}

	switch e.state {
	case entryResolved:
		return e.val, nil
	case entryFailed:
		return nil, e.err
	case entryResolving:
		err := fmt.Errorf("%w: pool %d key %d refers back to itself", errs.ErrCyclicConstantReference, typeID, key)
		e.state = entryFailed
		e.err = err

		return nil, err
	}

	if depth > r.maxDepth {
		return nil, fmt.Errorf("%w: reference chain deeper than %d at pool %d key %d", errs.ErrDepthLimitExceeded, r.maxDepth, typeID, key)
	}

	e.state = entryResolving

	v, _, err := r.dec.DecodeValue(e.data, typeID)
	if err == nil {
		v, err = r.expand(v, depth)
	}
	if err != nil {
		err = fmt.Errorf("pool %d key %d: %w", typeID, key, err)
		e.state = entryFailed
		e.err = err
		e.data = nil

		return nil, err
	}

	e.state = entryResolved
	e.val = v
	e.data = nil

	return v, nil
}

// expand substitutes every reference nested in v with its resolved value.
func (r *Resolver) expand(v value.Value, depth int) (value.Value, error) {
	switch t := v.(type) {
	case value.ConstantRef:
		return r.resolve(t.TypeID, t.Key, depth+1)

	case value.Struct:
		for i := range t.Fields {
			ev, err := r.expand(t.Fields[i].Value, depth+1)
			if err != nil {
				return nil, err
			}
			t.Fields[i].Value = ev
		}

		return t, nil

	case value.Array:
		for i := range t {
			ev, err := r.expand(t[i], depth+1)
			if err != nil {
				return nil, err
			}
			t[i] = ev
		}

		return t, nil

	default:
		return v, nil
	}
}
