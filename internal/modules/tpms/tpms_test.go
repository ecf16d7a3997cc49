package tpms

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadingUnmarshal(t *testing.T) {
	var r reading
	require.NoError(t, json.Unmarshal([]byte(`{"model":"Schrader","type":"TPMS","id":"1a2b3c"}`), &r))
	assert.Equal(t, "Schrader", r.Model)
	assert.Equal(t, "1a2b3c", r.ID)
}

func TestModuleBasics(t *testing.T) {
	m := New()
	assert.Equal(t, "tpms", m.Name())
	assert.False(t, m.IsPseudo())
	assert.False(t, m.IsProxy())

	got := m.Setting("print_all", nil)
	assert.Equal(t, false, got)

	v := "1"
	got = m.Setting("print_all", &v)
	assert.Equal(t, true, got)
}
