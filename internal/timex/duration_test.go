package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestDuration_JSON(t *testing.T) {
	var cfg struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"15m","b":1000000000}`), &cfg))
	assert.Equal(t, 15*time.Minute, cfg.A.Duration)
	assert.Equal(t, time.Second, cfg.B.Duration)

	out, err := json.Marshal(cfg.A)
	require.NoError(t, err)
	assert.Equal(t, `"15m0s"`, string(out))
}

func TestDuration_JSONErrors(t *testing.T) {
	var d Duration
	assert.Error(t, json.Unmarshal([]byte(`"fortnight"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}

func TestDuration_YAML(t *testing.T) {
	var cfg struct {
		A Duration `yaml:"a"`
		B Duration `yaml:"b"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: 168h\nb: 500\n"), &cfg))
	assert.Equal(t, 168*time.Hour, cfg.A.Duration)
	assert.Equal(t, 500*time.Nanosecond, cfg.B.Duration)
}
