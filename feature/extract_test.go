package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LabPy/lantz-core/limits"
)

func TestExtractorPatterns(t *testing.T) {
	tests := []struct {
		pattern string
		answer  string
		want    string
		wantErr bool
	}{
		{"FREQ {} HZ", "FREQ 1.5 HZ", "1.5", false},
		{"{} HZ", "42 HZ", "42", false},
		{"VAL {}", "VAL on", "on", false},
		{"{}", "anything", "anything", false},
		{"FREQ {} HZ", "FREQ 1.5 HZ\r\n", "1.5", false},
		{"FREQ {} HZ", "VOLT 1.5 V", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.answer, func(t *testing.T) {
			ex, err := newExtractor(tt.pattern)
			require.NoError(t, err)

			got, err := ex.apply(tt.answer)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractorInvalidPatterns(t *testing.T) {
	_, err := newExtractor("no placeholder")
	require.Error(t, err)

	_, err = newExtractor("{} twice {}")
	require.Error(t, err)
}

func mustFloatLimits(t *testing.T, min, max float64) *limits.FloatLimits {
	t.Helper()
	l, err := limits.NewFloat(&min, &max, 0, "")
	require.NoError(t, err)
	return l
}
