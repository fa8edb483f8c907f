package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		development bool
		wantErr     bool
	}{
		{name: "debug production", level: "debug"},
		{name: "info production", level: "info"},
		{name: "warn development", level: "warn", development: true},
		{name: "error development", level: "error", development: true},
		{name: "invalid level", level: "chatty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLogger(tt.level, tt.development)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, l)
			require.Equal(t, tt.level, l.GetLevel())
		})
	}
}

func TestNewNopLogger(t *testing.T) {
	l := NewNopLogger()
	require.NotNil(t, l)

	// Should not panic or produce output
	l.Info("discarded")
	l.Errorf("also discarded: %d", 42)
}

func TestWithComponent(t *testing.T) {
	l := NewNopLogger()
	require.Equal(t, "", l.GetComponent())

	child := l.WithComponent("ledger")
	require.Equal(t, "ledger", child.GetComponent())

	// Parent is unchanged
	require.Equal(t, "", l.GetComponent())
}

// mockLoggingConfig implements the LoggingConfig interface for testing
type mockLoggingConfig struct {
	defaultLevel    string
	development     bool
	componentLevels map[string]string
}

func (m *mockLoggingConfig) GetComponentLevel(component string) string {
	if level, ok := m.componentLevels[component]; ok {
		return level
	}
	return m.defaultLevel
}

func (m *mockLoggingConfig) GetDefaultLevel() string {
	return m.defaultLevel
}

func (m *mockLoggingConfig) IsDevelopment() bool {
	return m.development
}

func TestNewComponentLoggerFromConfig(t *testing.T) {
	tests := []struct {
		name          string
		component     string
		config        LoggingConfig
		expectedLevel string
	}{
		{
			name:      "component with specific level",
			component: "syncer",
			config: &mockLoggingConfig{
				defaultLevel:    "info",
				componentLevels: map[string]string{"syncer": "debug"},
			},
			expectedLevel: "debug",
		},
		{
			name:      "component using default level",
			component: "sync-manager",
			config: &mockLoggingConfig{
				defaultLevel:    "warn",
				componentLevels: map[string]string{},
			},
			expectedLevel: "warn",
		},
		{
			name:          "nil config uses defaults",
			component:     "ledger",
			config:        nil,
			expectedLevel: "info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewComponentLoggerFromConfig(tt.component, tt.config)
			require.NotNil(t, l)
			require.Equal(t, tt.component, l.GetComponent())
			require.Equal(t, tt.expectedLevel, l.GetLevel())
		})
	}
}

func TestGetDefaultLogger(t *testing.T) {
	l := GetDefaultLogger()
	require.NotNil(t, l)
	// Subsequent calls return the cached instance
	require.Same(t, l, GetDefaultLogger())
}
