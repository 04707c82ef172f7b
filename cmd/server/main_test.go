package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurlHostForListenAddr(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want string
	}{
		{"default_port_only", ":8080", "localhost:8080"},
		{"explicit_ipv4", "10.0.0.5:9000", "10.0.0.5:9000"},
		{"any_ipv4", "0.0.0.0:8080", "localhost:8080"},
		{"any_ipv6", "[::]:8443", "localhost:8443"},
		{"ipv6_loopback_keeps_brackets", "[::1]:8080", "[::1]:8080"},
		{"surrounding_spaces", "  api.internal:7000 ", "api.internal:7000"},
		{"empty_uses_default", "", "localhost:8080"},
		{"blank_uses_default", "\t ", "localhost:8080"},
		{"no_port_unchanged", "cohort-host", "cohort-host"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, curlHostForListenAddr(tt.addr))
		})
	}
}
