package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertCmdDetectsRT90(t *testing.T) {
	cmd := convertCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"6580000", "1628000"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "input: RT90")
	assert.Contains(t, out.String(), "EPSG:3006")
	assert.Contains(t, out.String(), "59.32")
}

func TestConvertCmdHonoursFrom(t *testing.T) {
	cmd := convertCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--from", "WGS84", "59.3293,18.0686"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "input: WGS84")
	assert.Contains(t, out.String(), "6580743, 674572")
}

func TestConvertCmdRejectsUnknownMagnitude(t *testing.T) {
	cmd := convertCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"1", "2"})
	assert.Error(t, cmd.Execute())
}
