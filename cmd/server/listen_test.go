package main

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bloodlink/internal/logger"
)

func TestListenSkipsBusyPort(t *testing.T) {
	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer busy.Close()
	port := busy.Addr().(*net.TCPAddr).Port

	ln, got, err := listen(port, logger.Discard())
	require.NoError(t, err)
	defer ln.Close()

	assert.Greater(t, got, port)
	assert.LessOrEqual(t, got, port+maxPortIncrements)
	assert.Equal(t, got, ln.Addr().(*net.TCPAddr).Port)
}

func TestListenUsesPreferredPortWhenFree(t *testing.T) {
	probe, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := probe.Addr().(*net.TCPAddr).Port
	require.NoError(t, probe.Close())

	ln, got, err := listen(port, logger.Discard())
	require.NoError(t, err)
	defer ln.Close()
	assert.Equal(t, port, got)
}

func TestListenRejectsInvalidPort(t *testing.T) {
	_, _, err := listen(-5, logger.Discard())
	assert.Error(t, err)
}
