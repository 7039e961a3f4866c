// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package probing

import (
	"context"
	"net"
)

// lookupFunc resolves a host name to its addresses. It matches the
// signature of [net.Resolver.LookupIPAddr] so tests can swap it out.
type lookupFunc func(ctx context.Context, host string) ([]net.IPAddr, error)

// resolveTarget turns the target into the single IP address a run probes.
// A literal IP address short-circuits the lookup. For host names the
// preferred address family wins; when no address of the preferred family
// exists the other family is used as fallback.
func resolveTarget(ctx context.Context, lookup lookupFunc, target string, preferIPv6 bool) (net.IP, IPVersion, error) {
	if ip := net.ParseIP(target); ip != nil {
		return ip, versionOf(ip), nil
	}

	if lookup == nil {
		lookup = net.DefaultResolver.LookupIPAddr
	}
	addrs, err := lookup(ctx, target)
	if err != nil {
		return nil, 0, ErrResolveTarget{Target: target, Err: err}
	}

	ip := selectAddr(addrs, preferIPv6)
	if ip == nil {
		return nil, 0, ErrResolveTarget{Target: target}
	}
	return ip, versionOf(ip), nil
}

// selectAddr picks the address of the preferred family from the resolved
// set, falling back to the first address of the other family.
func selectAddr(addrs []net.IPAddr, preferIPv6 bool) net.IP {
	var v4, v6 net.IP
	for _, addr := range addrs {
		if addr.IP == nil {
			continue
		}
		if addr.IP.To4() != nil {
			if v4 == nil {
				v4 = addr.IP
			}
		} else if v6 == nil {
			v6 = addr.IP
		}
	}

	if preferIPv6 {
		if v6 != nil {
			return v6
		}
		return v4
	}
	if v4 != nil {
		return v4
	}
	return v6
}

// versionOf returns the address family of an IP address.
func versionOf(ip net.IP) IPVersion {
	if ip.To4() != nil {
		return IPv4
	}
	return IPv6
}
