package netutil

import (
	"bufio"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const retries = 30

// routeTablePath is the kernel route table in /proc. The default route is the
// entry with an all-zero destination.
const routeTablePath = "/proc/net/route"

// IsListeningFunction is a function type for checking if endpoint is responding.
type IsListeningFunction func(address string, timeout time.Duration) bool

// IsListening tries to establish TCP connection to given address in a form of `ip:port`.
// It returns true when it was able to connect to given endpoint within timeout time.
func IsListening(address string, timeout time.Duration) bool {
	sleepTime := time.Duration(timeout.Nanoseconds() / int64(retries))
	for i := 0; i < retries; i++ {
		conn, err := net.Dial("tcp", address)
		if err != nil {
			time.Sleep(sleepTime)
			continue
		}
		conn.Close()
		return true
	}

	return false
}

// DefaultInterface returns the name of the interface carrying the default
// route.
func DefaultInterface() (string, error) {
	file, err := os.Open(routeTablePath)
	if err != nil {
		return "", errors.Wrapf(err, "could not open %q", routeTablePath)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	// Skip the header line.
	if scanner.Scan() {
		for scanner.Scan() {
			fields := strings.Fields(scanner.Text())
			if len(fields) < 2 {
				continue
			}
			// Iface Destination Gateway ... - destination 00000000 marks the
			// default route.
			if fields[1] == "00000000" {
				return fields[0], nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", errors.Wrapf(err, "could not read %q", routeTablePath)
	}

	return "", errors.New("could not determine default network interface")
}
