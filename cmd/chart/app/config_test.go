package app

import (
	"flag"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/anemometer/internal/units"
)

func TestNewConfigFromCLI(t *testing.T) {
	c, err := NewConfigFromCLI([]string{
		"-db", "history.db", "-o", "wind", "-f", "JPG", "-unit", "kn", "-theme", "Marine",
		"-tz", "UTC", "-width", "800", "-height", "300", "-valid-only",
	}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "history.db", c.DBPath)
	assert.Empty(t, c.SessionID)
	assert.Equal(t, "wind.jpeg", c.OutputFile)
	assert.Equal(t, ImageJPEG, c.Format)
	assert.Equal(t, units.Knots, c.Unit)
	assert.Equal(t, MarineTheme, c.Theme)
	assert.Equal(t, time.UTC, c.TimeZone)
	assert.Equal(t, 800, c.Width)
	assert.Equal(t, 300, c.Height)
	assert.True(t, c.ValidOnly)
	assert.False(t, c.NoAnnotations)
}

func TestNewConfigFromCLI_Defaults(t *testing.T) {
	c, err := NewConfigFromCLI([]string{"-db", "history.db", "-o", "wind", "-s", "abc"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "abc", c.SessionID)
	assert.Equal(t, "wind.png", c.OutputFile)
	assert.Equal(t, units.MetresPerSecond, c.Unit)
	assert.Equal(t, BeaufortTheme, c.Theme)
	assert.Equal(t, defaultWidth, c.Width)
	assert.Equal(t, defaultHeight, c.Height)
}

func TestNewConfigFromCLI_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing db", []string{"-o", "wind"}},
		{"missing output", []string{"-db", "history.db"}},
		{"bad format", []string{"-db", "history.db", "-o", "wind", "-f", "gif"}},
		{"bad theme", []string{"-db", "history.db", "-o", "wind", "-theme", "neon"}},
		{"bad unit", []string{"-db", "history.db", "-o", "wind", "-unit", "furlongs"}},
		{"bad zone", []string{"-db", "history.db", "-o", "wind", "-tz", "Mars/Olympus"}},
		{"small plot", []string{"-db", "history.db", "-o", "wind", "-width", "10"}},
		{"unknown flag", []string{"-nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfigFromCLI(tt.args, io.Discard)
			assert.Error(t, err)
		})
	}
}

func TestNewConfigFromCLI_Help(t *testing.T) {
	_, err := NewConfigFromCLI([]string{"-h"}, io.Discard)
	assert.ErrorIs(t, err, flag.ErrHelp)
}
