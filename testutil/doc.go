// Package testutil provides deterministic fixtures for tests.
//
//	rng := testutil.NewRNG(42)
//	dense := rng.Dense(100, 16)         // uniform [-1, 1)
//	words := testutil.Words(100)        // "w0" ... "w99"
//	top := testutil.ExactTopK(dense, query, 10, nil)
package testutil
