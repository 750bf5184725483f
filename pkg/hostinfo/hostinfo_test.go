package hostinfo

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystemResolvesHostname(t *testing.T) {
	id := System{
		LookupIP: func(ctx context.Context, host string) ([]net.IP, error) {
			return []net.IP{net.ParseIP("::1"), net.ParseIP("192.0.2.10")}, nil
		},
	}.Resolve(context.Background())

	assert.NotEmpty(t, id.MachineName)
	assert.NotEqual(t, Unknown, id.MachineName)
	assert.Equal(t, "192.0.2.10", id.IPAddress)
}

func TestSystemFallsBackWhenLookupFails(t *testing.T) {
	id := System{
		LookupIP: func(ctx context.Context, host string) ([]net.IP, error) {
			return nil, errors.New("no such host")
		},
	}.Resolve(context.Background())

	assert.NotEmpty(t, id.IPAddress)
	if id.IPAddress != Unknown {
		assert.NotNil(t, net.ParseIP(id.IPAddress).To4())
	}
}

func TestFirstIPv4(t *testing.T) {
	assert.Equal(t, "", firstIPv4(nil))
	assert.Equal(t, "", firstIPv4([]net.IP{net.ParseIP("fe80::1")}))
	assert.Equal(t, "10.1.2.3", firstIPv4([]net.IP{net.ParseIP("fe80::1"), net.ParseIP("10.1.2.3")}))
}

func TestStatic(t *testing.T) {
	s := Static{MachineName: "node-1", IPAddress: "10.0.0.1"}
	assert.Equal(t, Identity{MachineName: "node-1", IPAddress: "10.0.0.1"}, s.Resolve(context.Background()))
}
