package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]int{"": INFO, "info": INFO, "DEBUG": DEBUG, " trace ": TRACE} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	l, err := New(Options{Level: "debug"})
	require.NoError(t, err)
	assert.True(t, l.V(DEBUG).Enabled())
	assert.False(t, l.V(TRACE).Enabled())

	_, err = New(Options{Level: "nope"})
	assert.Error(t, err)
}

func TestNewTestLogger(t *testing.T) {
	assert.True(t, NewTestLogger().V(TRACE).Enabled())
}
