package models

import (
	"testing"

	pkgerrors "relayconf/pkg/errors"
)

func validConfiguration() *Configuration {
	return &Configuration{
		Name:      "Relay 1",
		Host:      "192.168.0.2",
		RelayPort: 7000,
		SocksPort: 8090,
		GroupID:   1,
	}
}

func TestGroupValidate(t *testing.T) {
	if err := (&Group{Name: "Home"}).Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
	for _, name := range []string{"", "   "} {
		err := (&Group{Name: name}).Validate()
		if !pkgerrors.IsValidation(err) {
			t.Errorf("Validate(%q) = %v, want ValidationError", name, err)
		}
	}
}

func TestConfigurationValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Configuration)
		field  string
	}{
		{"valid", func(c *Configuration) {}, ""},
		{"empty name", func(c *Configuration) { c.Name = "" }, "name"},
		{"hostname", func(c *Configuration) { c.Host = "relay.example.com" }, "host"},
		{"ipv6", func(c *Configuration) { c.Host = "::1" }, "host"},
		{"octet overflow", func(c *Configuration) { c.Host = "192.168.0.256" }, "host"},
		{"privileged relay port", func(c *Configuration) { c.RelayPort = 80 }, "relay port"},
		{"lowest port", func(c *Configuration) { c.RelayPort = 1024 }, ""},
		{"highest port", func(c *Configuration) { c.SocksPort = 65535 }, ""},
		{"socks port overflow", func(c *Configuration) { c.SocksPort = 65536 }, "socks port"},
		{"no group", func(c *Configuration) { c.GroupID = 0 }, "group"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfiguration()
			tt.mutate(c)
			err := c.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			v, ok := err.(*pkgerrors.ValidationError)
			if !ok {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if v.Field != tt.field {
				t.Errorf("Field = %q, want %q", v.Field, tt.field)
			}
		})
	}
}

func TestParsePort(t *testing.T) {
	if p, err := ParsePort(" 7000 "); err != nil || p != 7000 {
		t.Errorf("ParsePort(7000) = %d, %v", p, err)
	}
	for _, in := range []string{"", "abc", "1023", "70000"} {
		if _, err := ParsePort(in); !pkgerrors.IsValidation(err) {
			t.Errorf("ParsePort(%q) = %v, want ValidationError", in, err)
		}
	}
}

func TestCloneIsolation(t *testing.T) {
	orig := []*Configuration{validConfiguration()}
	cp := CloneConfigurations(orig)
	cp[0].Priority = 9
	if orig[0].Priority == 9 {
		t.Error("clone shares state with original")
	}

	g := &Group{ID: 1, Name: "Home"}
	gc := g.Clone()
	gc.Active = true
	if g.Active {
		t.Error("group clone shares state with original")
	}
}
