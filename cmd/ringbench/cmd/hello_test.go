package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHello_Local(t *testing.T) {
	out, err := execute(t, "hello", "--local", "3")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 9)
	assert.Contains(t, lines, `I, node 1, received a message: "Hello node 1, I'm node 2"`)
	assert.Contains(t, lines, `I, node 2, received a message: "I'm just node 2 talking to myself"`)
}

func TestHello_RejectsArguments(t *testing.T) {
	_, err := execute(t, "hello", "extra", "--local", "2")
	assert.Error(t, err)
}
