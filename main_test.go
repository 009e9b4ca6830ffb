package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashIDCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"hashid", "2025-01-02T03-04-05-678Z_original.png", "abc"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t,
		"048361ed1\t2025-01-02T03-04-05-678Z_original.png\n000017862\tabc\n",
		out.String())
}

func TestHashIDCommandNeedsArgs(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"hashid"})
	assert.Error(t, cmd.Execute())
}
