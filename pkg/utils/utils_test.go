package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vehicle struct {
	VIN      string   `json:"vin" validate:"omitempty,vin"`
	Zones    []string `json:"ppf_zones" validate:"required,min=1,unique,dive,zone"`
	FilmType string   `json:"film_type" validate:"omitempty,film_type"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		input   vehicle
		wantMsg string
	}{
		{
			name:  "valid",
			input: vehicle{VIN: "1HGCM82633A004352", Zones: []string{"hood", "bumper"}, FilmType: "matte"},
		},
		{
			name:    "missing zones",
			input:   vehicle{},
			wantMsg: "ppf_zones is required",
		},
		{
			name:    "duplicate zones",
			input:   vehicle{Zones: []string{"hood", "hood"}},
			wantMsg: "ppf_zones must not contain duplicates",
		},
		{
			name:    "blank zone",
			input:   vehicle{Zones: []string{"  "}},
			wantMsg: "ppf_zones[0] must be a non-blank zone name",
		},
		{
			name:    "VIN with letter O",
			input:   vehicle{VIN: "1HGCM82633O004352", Zones: []string{"hood"}},
			wantMsg: "vin is not a valid VIN",
		},
		{
			name:    "unknown film",
			input:   vehicle{Zones: []string{"hood"}, FilmType: "chrome"},
			wantMsg: `film_type "chrome" is not a supported film type`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := ValidateStruct(tt.input)
			if tt.wantMsg == "" {
				assert.Empty(t, msgs)
				return
			}
			require.Len(t, msgs, 1)
			assert.Equal(t, tt.wantMsg, msgs[0])
		})
	}
}

func TestRegisterRules(t *testing.T) {
	require.NoError(t, registerRules(validator.New(), customRules))
	assert.NotPanics(t, func() { Validator() })

	err := registerRules(validator.New(), map[string]validator.Func{"zone": nil})
	assert.ErrorContains(t, err, `register validation "zone"`)
}

func TestValidateZone(t *testing.T) {
	assert.NoError(t, ValidateZone("front bumper"))
	assert.Error(t, ValidateZone(""))
	assert.Error(t, ValidateZone("hood\x00"))
	assert.Error(t, ValidateZone(strings.Repeat("z", MaxZoneLength+1)))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "scratch on hood", SanitizeString("scratch\x07 on hood\x00"))
	assert.True(t, IsFilmType("premium"))
	assert.False(t, IsFilmType("Premium"))
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")

	logger, err := NewLogger(LoggerConfig{Level: "DEBUG", OutputPath: path, Format: "json"})
	require.NoError(t, err)

	logger.Debug("step advanced")
	require.NoError(t, logger.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"step advanced"`)
	assert.Contains(t, string(raw), `"timestamp"`)
}

func TestNewLogger_Format(t *testing.T) {
	_, err := NewLogger(LoggerConfig{Format: "console", OutputPath: "stderr"})
	assert.NoError(t, err)

	_, err = NewLogger(LoggerConfig{Format: "xml"})
	assert.Error(t, err)
}
