package ism433

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModuleBasics(t *testing.T) {
	m := New()
	assert.Equal(t, "ism433", m.Name())
	assert.Nil(t, m.Commands())
	assert.False(t, m.IsPseudo())
}

func TestSettingParsesPrintAll(t *testing.T) {
	m := New()
	on := "1"
	assert.Equal(t, true, m.Setting("print_all", &on))

	off := "0"
	assert.Equal(t, false, m.Setting("print_all", &off))
}
