package models

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	pkgerrors "relayconf/pkg/errors"
)

// Port bounds accepted for relay and SOCKS ports.
const (
	MinPort = 1024
	MaxPort = 65535
)

// Configuration is one relay connection profile
type Configuration struct {
	ID        int64  `json:"id"` // 0 until persisted
	Name      string `json:"name"`
	Host      string `json:"host"` // IPv4 literal
	RelayPort int    `json:"relay_port"`
	SocksPort int    `json:"socks_port"`

	// Priority is the 1-based display/use rank inside the owning group.
	Priority int   `json:"priority"`
	GroupID  int64 `json:"group_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Endpoint holds the plain values handed to the proxy engine.
type Endpoint struct {
	Host      string
	RelayPort int
	SocksPort int
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d (socks %d)", e.Host, e.RelayPort, e.SocksPort)
}

// Endpoint returns the connection values of c.
func (c *Configuration) Endpoint() Endpoint {
	return Endpoint{Host: c.Host, RelayPort: c.RelayPort, SocksPort: c.SocksPort}
}

// Validate checks name, host, ports and group ownership.
func (c *Configuration) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return &pkgerrors.ValidationError{Entity: "configuration", Field: "name", Reason: "is required"}
	}
	if !IsValidIPv4(c.Host) {
		return &pkgerrors.ValidationError{Entity: "configuration", Field: "host", Reason: fmt.Sprintf("%q is not an IPv4 address", c.Host)}
	}
	if !IsValidPort(c.RelayPort) {
		return &pkgerrors.ValidationError{Entity: "configuration", Field: "relay port", Reason: portReason(c.RelayPort)}
	}
	if !IsValidPort(c.SocksPort) {
		return &pkgerrors.ValidationError{Entity: "configuration", Field: "socks port", Reason: portReason(c.SocksPort)}
	}
	if c.GroupID == 0 {
		return &pkgerrors.ValidationError{Entity: "configuration", Field: "group", Reason: "is required"}
	}
	return nil
}

func portReason(p int) string {
	return fmt.Sprintf("%d is outside [%d, %d]", p, MinPort, MaxPort)
}

// IsValidIPv4 reports whether host is a dotted-quad IPv4 literal.
func IsValidIPv4(host string) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	return addr.Is4()
}

// IsValidPort reports whether p is an unprivileged TCP port.
func IsValidPort(p int) bool {
	return p >= MinPort && p <= MaxPort
}

// ParsePort converts user input to a port, validating the range.
func ParsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &pkgerrors.ValidationError{Field: "port", Reason: fmt.Sprintf("%q is not a number", s)}
	}
	if !IsValidPort(p) {
		return 0, &pkgerrors.ValidationError{Field: "port", Reason: portReason(p)}
	}
	return p, nil
}

// Clone returns a copy that shares no state with c.
func (c *Configuration) Clone() *Configuration {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// CloneConfigurations copies every configuration in the slice.
func CloneConfigurations(configs []*Configuration) []*Configuration {
	out := make([]*Configuration, len(configs))
	for i, c := range configs {
		out[i] = c.Clone()
	}
	return out
}
