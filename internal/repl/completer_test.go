package repl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gammarf/station/internal/devices"
)

func TestCompleterCommandNames(t *testing.T) {
	k := newTestKernel(t, &fakeModule{name: "c1"})
	c := &replCompleter{k: k}

	candidates, length := c.Do([]rune("he"), 2)
	require.NotEmpty(t, candidates)
	assert.Equal(t, 2, length)

	var found bool
	for _, cand := range candidates {
		if string(cand) == "lp" {
			found = true
		}
	}
	assert.True(t, found, "expected 'help' to complete from 'he'")
}

func TestCompleterRunModuleArg(t *testing.T) {
	k := newTestKernel(t, &fakeModule{name: "c2"})
	c := &replCompleter{k: k}

	candidates, length := c.Do([]rune("run "), 4)
	assert.Equal(t, 0, length)

	var found bool
	for _, cand := range candidates {
		if string(cand) == "repltest_c2" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCompleterStopOnlyOccupiedDevices(t *testing.T) {
	mod := &fakeModule{name: "c3", kinds: []devices.Kind{devices.NarrowBand}, runOK: true}
	k := newTestKernel(t, mod)
	require.True(t, k.runModule(0, "repltest_c3", ""))

	c := &replCompleter{k: k}
	candidates, _ := c.Do([]rune("stop "), 5)

	var found bool
	for _, cand := range candidates {
		if string(cand) == "0" {
			found = true
		}
	}
	assert.True(t, found)
}
