package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLoggerLevels(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewDefaultLogger("stars", false, WithOutput(&out, &errOut))

	l.Debugf("hidden %d", 1)
	l.Infof("loaded %d points", 3)
	l.Errorf("draw failed for %s", "abc")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "[stars] INFO: loaded 3 points")
	assert.Contains(t, errOut.String(), "[stars] ERROR: draw failed for abc")

	l.SetDebug(true)
	assert.True(t, l.DebugEnabled())
	l.Debugf("visible")
	assert.Contains(t, out.String(), "[stars] DEBUG: visible")
}

func TestDefaultLoggerWithoutPrefix(t *testing.T) {
	var out bytes.Buffer
	l := NewDefaultLogger("", false, WithOutput(&out, &out))
	l.Warnf("careful")
	assert.Equal(t, "WARN: careful\n", out.String())
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	assert.False(t, OrNop(nil).DebugEnabled())
	l := NewNopLogger()
	assert.Equal(t, l, OrNop(l))
}
