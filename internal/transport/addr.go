// File: internal/transport/addr.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"net"
)

// resolve splits a host:port endpoint. An empty host yields a nil IP, which
// binds the IPv4 wildcard. Names resolve to their first IPv4 address when
// one exists.
func resolve(ctx context.Context, address string) (net.IP, int, error) {
	host, service, err := net.SplitHostPort(address)
	if err != nil {
		return nil, 0, fmt.Errorf("parse endpoint %q: %w", address, err)
	}
	port, err := net.DefaultResolver.LookupPort(ctx, "tcp", service)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve port %q: %w", service, err)
	}
	if host == "" {
		return nil, port, nil
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip, port, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve host %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, 0, fmt.Errorf("resolve host %q: no addresses", host)
	}
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return a.IP, port, nil
		}
	}
	return addrs[0].IP, port, nil
}
