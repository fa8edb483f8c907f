package common

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "milliseconds", input: "250ms", expected: 250 * time.Millisecond},
		{name: "seconds", input: "30s", expected: 30 * time.Second},
		{name: "minutes", input: "5m", expected: 5 * time.Minute},
		{name: "complex duration", input: "1h30m45s", expected: 1*time.Hour + 30*time.Minute + 45*time.Second},
		{name: "empty string", input: "", wantErr: true},
		{name: "missing unit", input: "42", wantErr: true},
		{name: "garbage", input: "not-a-duration", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, d.Duration)
		})
	}
}

func TestDuration_YAMLRoundTrip(t *testing.T) {
	type wrapper struct {
		Interval Duration `yaml:"interval"`
	}

	var w wrapper
	require.NoError(t, yaml.Unmarshal([]byte("interval: 90s\n"), &w))
	require.Equal(t, 90*time.Second, w.Interval.Duration)

	out, err := yaml.Marshal(w)
	require.NoError(t, err)

	var back wrapper
	require.NoError(t, yaml.Unmarshal(out, &back))
	require.Equal(t, w.Interval.Duration, back.Interval.Duration)
}

func TestDuration_JSON(t *testing.T) {
	type wrapper struct {
		Interval Duration `json:"interval"`
	}

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"interval":"2m"}`), &w))
	require.Equal(t, 2*time.Minute, w.Interval.Duration)

	// Plain integers are nanoseconds
	require.NoError(t, json.Unmarshal([]byte(`{"interval":1000000000}`), &w))
	require.Equal(t, time.Second, w.Interval.Duration)

	require.Error(t, json.Unmarshal([]byte(`{"interval":true}`), &w))
}
