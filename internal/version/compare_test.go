package version

import (
	"testing"

	"github.com/rxtech-lab/tickerwatch/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckConfigVersion(t *testing.T) {
	tests := []struct {
		name          string
		binary        string
		config        string
		expectError   bool
		errorContains string
	}{
		{name: "exact match", binary: "1.2.0", config: "1.2.0"},
		{name: "binary patch higher", binary: "1.2.3", config: "1.2.0"},
		{name: "config patch higher", binary: "1.2.0", config: "1.2.7"},
		{name: "binary minor higher", binary: "1.4.0", config: "1.2.0"},
		{name: "short pin", binary: "1.4.0", config: "1.2"},
		{name: "no pin", binary: "1.4.0", config: ""},
		{name: "binary is main", binary: "main", config: "3.0.0"},
		{name: "config is main", binary: "1.0.0", config: "main"},
		{name: "v prefix on both", binary: "v1.2.0", config: "v1.2.0"},
		{name: "prerelease binary", binary: "1.2.0-rc.1", config: "1.2.0"},
		{
			name:          "config minor higher",
			binary:        "1.2.0",
			config:        "1.3.0",
			expectError:   true,
			errorContains: "config requires 1.3.x",
		},
		{
			name:          "major differs",
			binary:        "2.0.0",
			config:        "1.2.0",
			expectError:   true,
			errorContains: "major version mismatch",
		},
		{
			name:          "invalid config version",
			binary:        "1.2.0",
			config:        "latest",
			expectError:   true,
			errorContains: "invalid config version",
		},
		{
			name:          "invalid binary version",
			binary:        "dev-build",
			config:        "1.2.0",
			expectError:   true,
			errorContains: "invalid binary version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckConfigVersion(tt.binary, tt.config)
			if !tt.expectError {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestConfigMismatchIsConfigurationError(t *testing.T) {
	err := CheckConfigVersion("1.0.0", "2.0.0")

	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func TestGetVersion(t *testing.T) {
	original := Version
	defer func() { Version = original }()

	Version = "1.5.0"
	assert.Equal(t, "1.5.0", GetVersion())
}
