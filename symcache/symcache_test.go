// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symcache

import (
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golang-debug/symbolize/frame"
	"github.com/golang-debug/symbolize/objfile"
	"github.com/golang-debug/symbolize/objfile/debuglink"
)

type fakeParser struct {
	path   string
	closed bool

	debugLinkName string
	debugLinkCRC  uint32
	hasDebugLink  bool
}

func (p *fakeParser) Path() string                         { return p.path }
func (p *fakeParser) ImageBase() frame.PC                  { return 0 }
func (p *fakeParser) LookupSymbol(frame.PC) (string, bool) { return "", false }
func (p *fakeParser) DebugSection(string) []byte           { return nil }
func (p *fakeParser) DebugLink() (string, uint32, bool) {
	return p.debugLinkName, p.debugLinkCRC, p.hasDebugLink
}
func (p *fakeParser) Close() error { p.closed = true; return nil }

func fakeOpener(opened *[]string) func(string) (Entry, error) {
	return func(path string) (Entry, error) {
		*opened = append(*opened, path)
		return Entry{Parser: &fakeParser{path: path}}, nil
	}
}

func fakeBytesOpener(opened *[]string) func(string, []byte) (Entry, error) {
	return func(key string, data []byte) (Entry, error) {
		*opened = append(*opened, key)
		return Entry{Parser: &fakeParser{path: key}}, nil
	}
}

func TestPrioritizeMemoryNeverRetains(t *testing.T) {
	var opened []string
	c := New(PrioritizeMemory)
	c.openFn = fakeOpener(&opened)

	_, err := c.Get("/bin/a")
	require.NoError(t, err)
	_, err = c.Get("/bin/a")
	require.NoError(t, err)

	assert.Equal(t, []string{"/bin/a", "/bin/a"}, opened, "every Get re-opens under PrioritizeMemory")
}

func TestPrioritizeSpeedRetainsAcrossGets(t *testing.T) {
	var opened []string
	c := New(PrioritizeSpeed)
	c.openFn = fakeOpener(&opened)

	_, err := c.Get("/bin/a")
	require.NoError(t, err)
	_, err = c.Get("/bin/a")
	require.NoError(t, err)

	assert.Equal(t, []string{"/bin/a"}, opened, "second Get is served from the cache")
}

func TestHybridEvictsLeastRecentlyUsed(t *testing.T) {
	var opened []string
	c := New(Hybrid, WithMaxEntries(2))
	c.openFn = fakeOpener(&opened)

	_, err := c.Get("/bin/a")
	require.NoError(t, err)
	_, err = c.Get("/bin/b")
	require.NoError(t, err)
	// Touch a again so it's most-recently-used; b should be evicted next.
	_, err = c.Get("/bin/a")
	require.NoError(t, err)
	_, err = c.Get("/bin/c")
	require.NoError(t, err)

	entryB, ok := c.objects["/bin/b"]
	assert.False(t, ok, "b should have been evicted")
	_ = entryB
	_, aStillCached := c.objects["/bin/a"]
	assert.True(t, aStillCached)
	_, cCached := c.objects["/bin/c"]
	assert.True(t, cCached)
}

func TestCloseReleasesEverything(t *testing.T) {
	var opened []string
	c := New(PrioritizeSpeed)
	c.openFn = fakeOpener(&opened)
	_, err := c.Get("/bin/a")
	require.NoError(t, err)

	parser := c.objects["/bin/a"].e.Parser.(*fakeParser)
	require.NoError(t, c.Close())
	assert.True(t, parser.closed)
	assert.Empty(t, c.objects)
}

func TestResolverFromDebugLinkFindsSiblingByCRC(t *testing.T) {
	dir := t.TempDir()
	objPath := filepath.Join(dir, "a.out")
	debugPath := filepath.Join(dir, "a.out.debug")
	content := []byte("fake debug data")
	require.NoError(t, os.WriteFile(debugPath, content, 0o644))
	crc := crc32.ChecksumIEEE(content)

	parser := &fakeParser{path: objPath, debugLinkName: "a.out.debug", debugLinkCRC: crc, hasDebugLink: true}

	c := New(PrioritizeMemory)
	var openedDebug []string
	c.openDebugFn = func(path string) (objfile.Parser, error) {
		openedDebug = append(openedDebug, path)
		return &fakeParser{path: path}, nil
	}

	_, ok := c.resolverFromDebugLink(objPath, parser)
	assert.False(t, ok, "the fake debug file carries no usable .debug_info, so no Resolver comes out the other end")
	assert.Equal(t, []string{debugPath}, openedDebug, "should open the CRC-matching sibling named by .gnu_debuglink")
}

func TestResolverFromDebugLinkRejectsCRCMismatch(t *testing.T) {
	dir := t.TempDir()
	objPath := filepath.Join(dir, "a.out")
	debugPath := filepath.Join(dir, "a.out.debug")
	require.NoError(t, os.WriteFile(debugPath, []byte("fake debug data"), 0o644))

	parser := &fakeParser{path: objPath, debugLinkName: "a.out.debug", debugLinkCRC: 0xdeadbeef, hasDebugLink: true}

	c := New(PrioritizeMemory)
	var openedDebug []string
	c.openDebugFn = func(path string) (objfile.Parser, error) {
		openedDebug = append(openedDebug, path)
		return &fakeParser{path: path}, nil
	}

	_, ok := c.resolverFromDebugLink(objPath, parser)
	assert.False(t, ok)
	assert.Empty(t, openedDebug, "a CRC mismatch must not open the candidate at all")
}

func TestResolverFromDebugLinkFallsBackToDSYM(t *testing.T) {
	dir := t.TempDir()
	objPath := filepath.Join(dir, "a.out")
	dsymPath := debuglink.DSYMPath(objPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(dsymPath), 0o755))
	require.NoError(t, os.WriteFile(dsymPath, []byte("dwarf"), 0o644))

	// No .gnu_debuglink at all - Mach-O objects never carry one.
	parser := &fakeParser{path: objPath}

	c := New(PrioritizeMemory)
	var openedDebug []string
	c.openDebugFn = func(path string) (objfile.Parser, error) {
		openedDebug = append(openedDebug, path)
		return &fakeParser{path: path}, nil
	}

	_, ok := c.resolverFromDebugLink(objPath, parser)
	assert.False(t, ok)
	assert.Equal(t, []string{dsymPath}, openedDebug, "with no .gnu_debuglink, should fall back to the conventional .dSYM path")
}

func TestResolverFromDebugLinkNoCandidateFound(t *testing.T) {
	dir := t.TempDir()
	objPath := filepath.Join(dir, "a.out")
	// Neither a debuglink-named sibling nor a .dSYM bundle exists.
	parser := &fakeParser{path: objPath}

	c := New(PrioritizeMemory)
	var openedDebug []string
	c.openDebugFn = func(path string) (objfile.Parser, error) {
		openedDebug = append(openedDebug, path)
		return &fakeParser{path: path}, nil
	}

	_, ok := c.resolverFromDebugLink(objPath, parser)
	assert.False(t, ok)
	assert.Empty(t, openedDebug)
}

func TestGetBytesPrioritizeMemoryNeverRetains(t *testing.T) {
	var opened []string
	c := New(PrioritizeMemory)
	c.openBytesFn = fakeBytesOpener(&opened)

	_, err := c.GetBytes("jit-1", []byte{0x01})
	require.NoError(t, err)
	_, err = c.GetBytes("jit-1", []byte{0x01})
	require.NoError(t, err)

	assert.Equal(t, []string{"jit-1", "jit-1"}, opened, "every GetBytes re-opens under PrioritizeMemory")
}

func TestGetBytesPrioritizeSpeedRetainsAcrossGets(t *testing.T) {
	var opened []string
	c := New(PrioritizeSpeed)
	c.openBytesFn = fakeBytesOpener(&opened)

	_, err := c.GetBytes("jit-1", []byte{0x01})
	require.NoError(t, err)
	_, err = c.GetBytes("jit-1", []byte{0x01})
	require.NoError(t, err)

	assert.Equal(t, []string{"jit-1"}, opened, "second GetBytes is served from the cache")
}

func TestGetBytesHybridEvictsLeastRecentlyUsed(t *testing.T) {
	var opened []string
	c := New(Hybrid, WithMaxEntries(2))
	c.openBytesFn = fakeBytesOpener(&opened)

	_, err := c.GetBytes("jit-a", []byte{0x01})
	require.NoError(t, err)
	_, err = c.GetBytes("jit-b", []byte{0x02})
	require.NoError(t, err)
	_, err = c.GetBytes("jit-a", []byte{0x01})
	require.NoError(t, err)
	_, err = c.GetBytes("jit-c", []byte{0x03})
	require.NoError(t, err)

	_, bStillCached := c.objects["jit-b"]
	assert.False(t, bStillCached, "b should have been evicted")
	_, aStillCached := c.objects["jit-a"]
	assert.True(t, aStillCached)
	_, cCached := c.objects["jit-c"]
	assert.True(t, cCached)
}

func TestGetBytesAndGetShareTheSameObjectsMap(t *testing.T) {
	var opened, openedBytes []string
	c := New(PrioritizeSpeed)
	c.openFn = fakeOpener(&opened)
	c.openBytesFn = fakeBytesOpener(&openedBytes)

	_, err := c.Get("/bin/a")
	require.NoError(t, err)
	_, err = c.GetBytes("jit-1", []byte{0x01})
	require.NoError(t, err)

	assert.Len(t, c.objects, 2, "path-keyed and byte-keyed entries share one retention map")
}
