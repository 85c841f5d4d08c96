//go:build property
// +build property

package canonical

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestEncodeDeterminism verifies canonical encoding is a pure function of
// the logical value, not of construction order.
// Property: Encode(obj) == Encode(obj) and hash-stable for any obj.
func TestEncodeDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("encoding is deterministic", prop.ForAll(
		func(keys []string, values []string) bool {
			obj := make(map[string]any)
			for i := 0; i < len(keys) && i < len(values); i++ {
				if keys[i] != "" {
					obj[keys[i]] = values[i]
				}
			}

			b1, err1 := Encode(obj)
			b2, err2 := Encode(obj)
			if err1 != nil || err2 != nil {
				return err1 != nil && err2 != nil
			}
			return string(b1) == string(b2)
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("reversed insertion order encodes identically", prop.ForAll(
		func(keys []string) bool {
			forward := make(map[string]any)
			for i, k := range keys {
				forward[k] = i
			}
			backward := make(map[string]any)
			for i := len(keys) - 1; i >= 0; i-- {
				backward[keys[i]] = forward[keys[i]]
			}

			b1, err1 := Encode(forward)
			b2, err2 := Encode(backward)
			if err1 != nil || err2 != nil {
				return err1 != nil && err2 != nil
			}
			return string(b1) == string(b2)
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
