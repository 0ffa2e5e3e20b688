package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-m", ":9191", "-d", "db", "-redis", "redis:6379", "-amqp", "amqp://rabbit",
			"-s", "secret", "-t", "1", "-r", "3", "-rotate=false", "-revoke-on-password-change",
			"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
		}, expectPanic: false,
			expected: &Config{
				GRPCAddr:               "127.0.0.1:9090",
				HTTPAddr:               ":9191",
				DatabaseDSN:            "db",
				RedisAddr:              "redis:6379",
				AMQPURL:                "amqp://rabbit",
				SecretKey:              "secret",
				AccessTTL:              1 * time.Minute,
				RefreshTTL:             3 * time.Minute,
				RotateRefresh:          false,
				RevokeOnPasswordChange: true,
				S3RootUser:             "user",
				S3RootPassword:         "password",
				S3Bucket:               "bucket",
				S3Region:               "us-west-1",
				S3BaseEndpoint:         "http://endpoint",
			}},
		{name: "durations untouched without flags", args: []string{"cmd", "-x", "ignored"},
			expected: &Config{AccessTTL: 90 * time.Second, RefreshTTL: 3 * time.Minute, RotateRefresh: true}},
		{name: "bad int panics", args: []string{"cmd", "-t", "soon"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{AccessTTL: 90 * time.Second, RefreshTTL: 3 * time.Minute, RotateRefresh: true}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(tt.expected, config))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
