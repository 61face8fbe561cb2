package accounts_test

import (
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
)

func TestIsWithinThresholdPeriod(t *testing.T) {
	tests := []struct {
		name      string
		t         time.Time
		threshold string
		want      bool
		wantErr   bool
	}{
		{
			name:      "Recent timestamp is within window",
			t:         time.Now().Add(-1 * time.Hour),
			threshold: "24h",
			want:      true,
		},
		{
			name:      "Old timestamp is outside window",
			t:         time.Now().Add(-48 * time.Hour),
			threshold: "24h",
			want:      false,
		},
		{
			name:      "Invalid duration expression",
			t:         time.Now(),
			threshold: "one day",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := accounts.IsWithinThresholdPeriod(tt.t, tt.threshold)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsOutsideThresholdPeriod(t *testing.T) {
	outside, err := accounts.IsOutsideThresholdPeriod(time.Now().Add(-48*time.Hour), "24h")
	assert.NoError(t, err)
	assert.True(t, outside)

	outside, err = accounts.IsOutsideThresholdPeriod(time.Now().Add(-1*time.Hour), "24h")
	assert.NoError(t, err)
	assert.False(t, outside)

	_, err = accounts.IsOutsideThresholdPeriod(time.Now(), "bogus")
	assert.Error(t, err)
}
