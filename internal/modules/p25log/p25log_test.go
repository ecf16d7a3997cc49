package p25log

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gammarf/station/internal/devices"
)

func TestTalkgroupPattern(t *testing.T) {
	match := talkgroupPattern.FindStringSubmatch("TG: 41001 voice")
	assert.Equal(t, []string{"TG: 41001", "41001"}, match)

	assert.Nil(t, talkgroupPattern.FindStringSubmatch("unrelated log line"))
}

func TestModuleIsPseudo(t *testing.T) {
	m := New()
	assert.True(t, m.IsPseudo())
	assert.Equal(t, []devices.Kind{devices.Pseudo}, m.SupportedDeviceKinds())
}

func TestRunRejectsBadPort(t *testing.T) {
	m := New()
	assert.False(t, m.Run(nil, "pseudo-9000", "not-a-port", false))
}
