// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbolize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/golang-debug/symbolize/symcache"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, symcache.Hybrid, cfg.Mode)
	assert.Equal(t, 64, cfg.MaxInlineDepth)
	assert.False(t, cfg.AbsorbErrors)
}

func TestOptionsOverrideDefaults(t *testing.T) {
	cfg := DefaultConfig()
	for _, o := range []Option{
		WithMode(symcache.PrioritizeSpeed),
		WithAbsorbErrors(true),
		WithMaxInlineDepth(8),
		WithLRUBound(4),
		WithPID(42),
	} {
		o(&cfg)
	}
	assert.Equal(t, symcache.PrioritizeSpeed, cfg.Mode)
	assert.True(t, cfg.AbsorbErrors)
	assert.Equal(t, 8, cfg.MaxInlineDepth)
	assert.Equal(t, 4, cfg.LRUBound)
	assert.Equal(t, 42, cfg.PID)
}

func TestCaptureNowReturnsNonEmptyStack(t *testing.T) {
	pcs := CaptureNow(0)
	assert.NotEmpty(t, pcs, "capturing the current goroutine's stack should yield at least one frame")
}

func TestHybridCacheIsScopedPerCall(t *testing.T) {
	d := New(WithMode(symcache.Hybrid))
	first, closeFirst := d.newCallCache()
	assert.True(t, closeFirst, "Hybrid's per-call cache must be closed by the caller")
	second, closeSecond := d.newCallCache()
	assert.True(t, closeSecond)
	assert.NotSame(t, first, second, "each Resolve call gets a fresh Hybrid cache, not one shared across calls")
}

func TestPrioritizeSpeedCacheIsSharedAcrossCalls(t *testing.T) {
	d := New(WithMode(symcache.PrioritizeSpeed))
	first, closeFirst := d.newCallCache()
	assert.False(t, closeFirst, "PrioritizeSpeed retains its Cache for the Driver's whole lifetime")
	second, _ := d.newCallCache()
	assert.Same(t, first, second)
}
