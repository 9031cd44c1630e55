// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarfidx

// Option configures a call to Open.
type Option func(*buildConfig)

type buildConfig struct {
	hashCapacity int
	parallel     bool
}

func defaultBuildConfig() buildConfig {
	return buildConfig{hashCapacity: defaultHashCapacity, parallel: true}
}

// WithHashCapacity overrides the index's fixed hash table size, which
// must be a power of two. The default is 2^17 slots.
func WithHashCapacity(capacity int) Option {
	return func(c *buildConfig) { c.hashCapacity = capacity }
}

// WithParallel controls whether Open indexes its input files
// concurrently. It defaults to true; tests that want deterministic
// single-goroutine behavior can pass WithParallel(false).
func WithParallel(parallel bool) Option {
	return func(c *buildConfig) { c.parallel = parallel }
}
