// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golang-debug/symbolize/frame"
)

type stubParser struct{ path string }

func (s *stubParser) Path() string                         { return s.path }
func (s *stubParser) ImageBase() frame.PC                  { return 0 }
func (s *stubParser) LookupSymbol(frame.PC) (string, bool) { return "", false }
func (s *stubParser) DebugSection(string) []byte           { return nil }
func (s *stubParser) DebugLink() (string, uint32, bool)    { return "", 0, false }
func (s *stubParser) Close() error                         { return nil }

// withRegisteredBytesBackends swaps in fakes for the three OpenBytes
// backends for the duration of a test and restores whatever was registered
// before (nil, in a normal test run where the elf/macho/pe packages are
// never imported into this package's test binary).
func withRegisteredBytesBackends(t *testing.T) (gotELF, gotMachO, gotPE *[]byte) {
	t.Helper()
	savedELF, savedMachO, savedPE := openELFBytesFunc, openMachOBytesFunc, openPEBytesFunc
	t.Cleanup(func() {
		openELFBytesFunc, openMachOBytesFunc, openPEBytesFunc = savedELF, savedMachO, savedPE
	})

	var elfBytes, machoBytes, peBytes []byte
	RegisterELFBytes(func(data []byte) (Parser, error) {
		elfBytes = data
		return &stubParser{path: "<memory>"}, nil
	})
	RegisterMachOBytes(func(data []byte) (Parser, error) {
		machoBytes = data
		return &stubParser{path: "<memory>"}, nil
	})
	RegisterPEBytes(func(data []byte) (Parser, error) {
		peBytes = data
		return &stubParser{path: "<memory>"}, nil
	})
	return &elfBytes, &machoBytes, &peBytes
}

func TestOpenBytesDispatchesELFByMagic(t *testing.T) {
	gotELF, _, _ := withRegisteredBytesBackends(t)

	data := []byte{0x7F, 'E', 'L', 'F', 0x02, 0x01}
	p, err := OpenBytes(data)
	require.NoError(t, err)
	assert.Equal(t, "<memory>", p.Path())
	assert.Equal(t, data, *gotELF)
}

func TestOpenBytesDispatchesMachOByMagic(t *testing.T) {
	_, gotMachO, _ := withRegisteredBytesBackends(t)

	data := []byte{0xfe, 0xed, 0xfa, 0xce, 0x01}
	_, err := OpenBytes(data)
	require.NoError(t, err)
	assert.Equal(t, data, *gotMachO)
}

func TestOpenBytesDispatchesPEByMagic(t *testing.T) {
	_, _, gotPE := withRegisteredBytesBackends(t)

	data := []byte{'M', 'Z', 0x90, 0x00}
	_, err := OpenBytes(data)
	require.NoError(t, err)
	assert.Equal(t, data, *gotPE)
}

func TestOpenBytesRejectsShortInput(t *testing.T) {
	_, err := OpenBytes([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestOpenBytesRejectsUnrecognizedMagic(t *testing.T) {
	withRegisteredBytesBackends(t)
	_, err := OpenBytes([]byte{0x00, 0x00, 0x00, 0x00})
	assert.Error(t, err)
}

func TestOpenBytesErrorsWhenBackendNotRegistered(t *testing.T) {
	savedELF := openELFBytesFunc
	openELFBytesFunc = nil
	t.Cleanup(func() { openELFBytesFunc = savedELF })

	_, err := OpenBytes([]byte{0x7F, 'E', 'L', 'F'})
	assert.Error(t, err)
}
