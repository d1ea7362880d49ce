// Package hashutil computes stable content hashes over planner model
// fragments. Every hash is a lowercase-hex SHA-256 digest of a canonical
// JSON serialization: map keys sorted, no insignificant whitespace, so that
// reordering independent input fields never perturbs the digest — the same
// property the teacher's query-plan cache key builder
// (wbrown-janus-datalog) gets from writing fields in a fixed order to a
// running sha256.Hash, generalized here into a canonicalize-then-hash pass
// so callers don't have to hand-order every struct themselves.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Hash is a lowercase-hex SHA-256 digest.
type Hash string

// Of canonicalizes v to JSON with sorted object keys and returns the
// lowercase-hex SHA-256 digest of the result. v must be JSON-marshalable.
func Of(v interface{}) (Hash, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", fmt.Errorf("hashutil: canonicalize: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return Hash(hex.EncodeToString(sum[:])), nil
}

// OfParts hashes the concatenation of several already-hashed or raw parts,
// in the given order. Used for composite hashes like model_hash =
// H(defaults ∥ calendars) where each operand is independently canonicalized
// first and the caller controls the (semantically meaningful) order.
func OfParts(parts ...interface{}) (Hash, error) {
	h := sha256.New()
	for i, p := range parts {
		canonical, err := Canonicalize(p)
		if err != nil {
			return "", fmt.Errorf("hashutil: canonicalize part %d: %w", i, err)
		}
		// length-prefix each part so concatenation cannot alias across a
		// boundary (e.g. ["ab","c"] vs ["a","bc"]).
		fmt.Fprintf(h, "%d:", len(canonical))
		h.Write(canonical)
	}
	return Hash(hex.EncodeToString(h.Sum(nil))), nil
}

// Canonicalize marshals v to JSON with object keys sorted recursively and
// no insignificant whitespace. Array order is preserved verbatim — callers
// are responsible for passing order-independent collections as sorted
// slices or as maps if set semantics are required.
func Canonicalize(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	var buf []byte
	buf, err = canonicalAppend(buf, generic)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func canonicalAppend(buf []byte, v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			buf, err = canonicalAppend(buf, val[k])
			if err != nil {
				return nil, err
			}
		}
		buf = append(buf, '}')
		return buf, nil
	case []interface{}:
		buf = append(buf, '[')
		for i, e := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			buf, err = canonicalAppend(buf, e)
			if err != nil {
				return nil, err
			}
		}
		buf = append(buf, ']')
		return buf, nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return append(buf, b...), nil
	}
}
