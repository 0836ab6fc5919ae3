package gena

import (
	"fmt"
	"net"
)

// LocalAddressOracle answers "what local address would be used to reach
// dest", the network-interface oracle spec.md §4.1 asks do_subscribe to
// consult when building a CALLBACK header.
type LocalAddressOracle interface {
	// LocalAddressFor returns the local IP that would be used to reach
	// dest (host:port or host), and whether it is an IPv6 address.
	LocalAddressFor(dest string) (addr net.IP, isIPv6 bool, err error)
}

// udpDialOracle is the standard Go idiom for local-route selection: dial a
// connectionless UDP socket to the destination and read back the address
// the kernel chose as the source. No packets are sent (UDP "connect" just
// performs route lookup).
type udpDialOracle struct{}

// DefaultLocalAddressOracle is the LocalAddressOracle used when none is
// configured explicitly.
var DefaultLocalAddressOracle LocalAddressOracle = udpDialOracle{}

func (udpDialOracle) LocalAddressFor(dest string) (net.IP, bool, error) {
	host, port, err := net.SplitHostPort(dest)
	if err != nil {
		// dest may be a bare host with no port.
		host = dest
		port = "80"
	}

	conn, err := net.Dial("udp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrSocketConnect, err)
	}
	defer conn.Close()

	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || local.IP == nil {
		return nil, false, fmt.Errorf("%w: could not determine local address", ErrSocketConnect)
	}

	return local.IP, local.IP.To4() == nil, nil
}
