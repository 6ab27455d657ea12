// Package testutil provides fixtures for sample index tests.
//
// This package is intended for use in tests and benchmarks only.
//
// # Random Variants
//
//	rng := testutil.NewRNG(seed)
//	vs := rng.SNVs("1", 100, 1, 5_000_000) // sorted, unique
//
// # Backend Conformance
//
//	testutil.RunBackendTests(t, func(t *testing.T) store.Backend {
//	    return newBackend(t)
//	})
package testutil
