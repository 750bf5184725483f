// Package hostinfo reports the identity of the machine a notification is sent from.
package hostinfo

import (
	"context"
	"net"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// Unknown is reported for values that could not be determined.
const Unknown = "unknown"

// Identity names the running machine.
type Identity struct {
	MachineName string
	IPAddress   string
}

// Resolver looks up the identity of the running machine.
type Resolver interface {
	Resolve(ctx context.Context) Identity
}

// System resolves the identity from the operating system on every call.
type System struct {
	// LookupIP resolves a host name; nil means net.DefaultResolver.
	LookupIP func(ctx context.Context, host string) ([]net.IP, error)
}

var _ Resolver = System{}

// Resolve implements Resolver.
func (s System) Resolve(ctx context.Context) Identity {
	name := hostname(ctx)
	return Identity{
		MachineName: name,
		IPAddress:   s.address(ctx, name),
	}
}

func hostname(ctx context.Context) string {
	if info, err := host.InfoWithContext(ctx); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return Unknown
}

func (s System) address(ctx context.Context, name string) string {
	lookup := s.LookupIP
	if lookup == nil {
		lookup = func(ctx context.Context, host string) ([]net.IP, error) {
			return net.DefaultResolver.LookupIP(ctx, "ip", host)
		}
	}

	if name != Unknown {
		if ips, err := lookup(ctx, name); err == nil {
			if ip := firstIPv4(ips); ip != "" {
				return ip
			}
		}
	}

	if ip := interfaceAddress(ctx); ip != "" {
		return ip
	}
	return Unknown
}

func firstIPv4(ips []net.IP) string {
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}

// interfaceAddress returns the first IPv4 address of an up, non-loopback interface.
func interfaceAddress(ctx context.Context) string {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if hasFlag(iface.Flags, "loopback") || !hasFlag(iface.Flags, "up") {
			continue
		}
		for _, addr := range iface.Addrs {
			ip, _, err := net.ParseCIDR(addr.Addr)
			if err != nil {
				ip = net.ParseIP(addr.Addr)
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			if v4 := ip.To4(); v4 != nil {
				return v4.String()
			}
		}
	}
	return ""
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}

// Static always reports the same identity.
type Static Identity

// Resolve implements Resolver.
func (s Static) Resolve(context.Context) Identity {
	return Identity(s)
}
