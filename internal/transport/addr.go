// internal/transport/addr.go
package transport

import (
	"fmt"
	"net"
)

// LocalIPv4 returns the address the monitor announces to the swarm.
// With ifaceName set, the first IPv4 of that interface is used; otherwise the
// first IPv4 of any up, non-loopback interface.
func LocalIPv4(ifaceName string) (net.IP, error) {
	if ifaceName != "" {
		ifc, err := net.InterfaceByName(ifaceName)
		if err != nil {
			return nil, fmt.Errorf("transport: interface %q: %w", ifaceName, err)
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			return nil, fmt.Errorf("transport: interface %q addrs: %w", ifaceName, err)
		}
		if ip := firstIPv4(addrs); ip != nil {
			return ip, nil
		}
		return nil, fmt.Errorf("transport: interface %q has no IPv4 address", ifaceName)
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("transport: list interfaces: %w", err)
	}
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		if ip := firstIPv4(addrs); ip != nil {
			return ip, nil
		}
	}
	return nil, fmt.Errorf("transport: no IPv4 interface found")
}

func firstIPv4(addrs []net.Addr) net.IP {
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip4 := ip.To4(); ip4 != nil && !ip4.IsLoopback() {
			return ip4
		}
	}
	return nil
}
