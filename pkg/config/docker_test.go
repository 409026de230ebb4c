package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveHost(t *testing.T) {
	tests := []struct {
		host     string
		inDocker bool
		expected string
	}{
		{"localhost", true, "host.docker.internal"},
		{"127.0.0.1", true, "host.docker.internal"},
		{"localhost", false, "localhost"},
		{"db.example.com", true, "db.example.com"},
		{"host.docker.internal", true, "host.docker.internal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, resolveHost(tt.host, tt.inDocker), "host=%s inDocker=%v", tt.host, tt.inDocker)
	}
}

func TestResolveHostForDocker_LeavesRemoteHostsAlone(t *testing.T) {
	assert.Equal(t, "mydb.example.com", ResolveHostForDocker("mydb.example.com"))
}
