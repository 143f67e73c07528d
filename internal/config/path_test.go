package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	t.Setenv("MOTORSENSE_DATA", "/srv/motors")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "tilde", in: "~", want: home},
		{name: "tilde prefix", in: "~/data/run.db", want: filepath.Join(home, "data/run.db")},
		{name: "env var", in: "$MOTORSENSE_DATA/scaler.json", want: "/srv/motors/scaler.json"},
		{name: "plain", in: "/etc/motorsense.yaml", want: "/etc/motorsense.yaml"},
		{name: "tilde in middle untouched", in: "/a/~/b", want: "/a/~/b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

func TestExpandPath_EnvBeforeTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	t.Setenv("MOTORSENSE_REL", "~/datasets")

	assert.Equal(t, filepath.Join(home, "datasets", "bench"), ExpandPath("${MOTORSENSE_REL}/bench"))
}
