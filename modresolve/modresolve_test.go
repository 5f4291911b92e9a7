// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package modresolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golang-debug/symbolize/frame"
)

type fakeProvider struct{ recs []Record }

func (f fakeProvider) Modules(int) ([]Record, error) { return f.recs, nil }

func TestFindWithinModule(t *testing.T) {
	r := NewWithProvider(0, fakeProvider{recs: []Record{
		{ObjectPath: "/bin/a", RuntimeBase: 0x1000, Low: 0x1000, High: 0x2000},
		{ObjectPath: "/bin/b", RuntimeBase: 0x5000, Low: 0x5000, High: 0x6000},
	}})

	rec, err := r.Find(0x1500)
	require.NoError(t, err)
	assert.Equal(t, "/bin/a", rec.ObjectPath)

	rec, err = r.Find(0x5900)
	require.NoError(t, err)
	assert.Equal(t, "/bin/b", rec.ObjectPath)
}

func TestFindOutsideAnyModuleIsLookupMiss(t *testing.T) {
	r := NewWithProvider(0, fakeProvider{recs: []Record{
		{ObjectPath: "/bin/a", RuntimeBase: 0x1000, Low: 0x1000, High: 0x2000},
	}})
	_, err := r.Find(0x9999)
	assert.Error(t, err)
}

func TestFindBetweenModulesIsLookupMiss(t *testing.T) {
	r := NewWithProvider(0, fakeProvider{recs: []Record{
		{ObjectPath: "/bin/a", RuntimeBase: 0x1000, Low: 0x1000, High: 0x2000},
		{ObjectPath: "/bin/b", RuntimeBase: 0x5000, Low: 0x5000, High: 0x6000},
	}})
	_, err := r.Find(0x3000)
	assert.Error(t, err)
}

func TestRefreshPopulatesByPath(t *testing.T) {
	var pc frame.PC = 0x42
	_ = pc
	r := NewWithProvider(0, fakeProvider{recs: []Record{
		{ObjectPath: "/bin/a", RuntimeBase: 0x1000, Low: 0x1000, High: 0x2000},
	}})
	require.NoError(t, r.Refresh())
	_, ok := r.ByPath("/bin/a")
	assert.True(t, ok)
}
