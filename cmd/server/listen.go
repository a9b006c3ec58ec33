package main

import (
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/sirupsen/logrus"
)

// maxPortIncrements bounds how far past the preferred port startup searches.
const maxPortIncrements = 10

// listen binds the preferred port, moving to the next one while the
// address is in use. Any other bind error is returned immediately.
func listen(preferred int, log logrus.FieldLogger) (net.Listener, int, error) {
	for port := preferred; port <= preferred+maxPortIncrements; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			return ln, port, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, 0, fmt.Errorf("listen on port %d: %w", port, err)
		}
		log.WithField("port", port).Warn("port in use, trying the next one")
	}
	return nil, 0, fmt.Errorf("no free port between %d and %d", preferred, preferred+maxPortIncrements)
}
