package preview

import (
	"fmt"
	"net"
	"strconv"

	"github.com/easel-dev/easel/internal/errors"
)

// listenInRange binds the first free TCP port in [low, high] on host and
// returns the live listener. The caller owns the listener. Ports are probed
// in ascending order so restarts land on the same port when it is free.
func listenInRange(host string, low, high int) (net.Listener, int, error) {
	if low < 1 || high > 65535 || low > high {
		return nil, 0, errors.New("E081").
			WithDetail(fmt.Sprintf("Port range %d-%d is not usable", low, high))
	}
	for port := low; port <= high; port++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			continue
		}
		return ln, port, nil
	}
	return nil, 0, errors.New("E060").
		WithDetail(fmt.Sprintf("Every port from %d to %d is already bound on %s", low, high, host))
}

// FindAvailablePort reports the first free TCP port in [low, high] on host.
// The probe socket is closed before returning, so the port is available but
// not reserved; callers that must hold the port should bind it themselves.
func FindAvailablePort(host string, low, high int) (int, error) {
	ln, port, err := listenInRange(host, low, high)
	if err != nil {
		return 0, err
	}
	ln.Close()
	return port, nil
}
