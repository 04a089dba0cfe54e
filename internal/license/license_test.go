package license

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		expiry int64
		want   Class
	}{
		{0, ClassUnknown},
		{-5, ClassUnknown},
		{1, ClassMonthly},
		{2592000, ClassMonthly},
		{OneYear - 1, ClassMonthly},
		{OneYear, ClassLifetime},
		{315569260, ClassLifetime},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.expiry), "expiry %d", tt.expiry)
	}
}

func TestClass_Bucket(t *testing.T) {
	assert.Equal(t, ClassMonthly, ClassUnknown.Bucket())
	assert.Equal(t, ClassMonthly, ClassMonthly.Bucket())
	assert.Equal(t, ClassLifetime, ClassLifetime.Bucket())
}

func TestParseClass(t *testing.T) {
	c, err := ParseClass("Monthly")
	require.NoError(t, err)
	assert.Equal(t, ClassMonthly, c)

	c, err = ParseClass(" lifetime ")
	require.NoError(t, err)
	assert.Equal(t, ClassLifetime, c)

	_, err = ParseClass("weekly")
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "abcd1234", NormalizeKey("ABCD-1234"))
	assert.Equal(t, "abcd1234", NormalizeKey(" abcd_12 34 "))
	assert.Equal(t, "", NormalizeKey(" - "))
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusNotUsed.Eligible())
	assert.True(t, StatusUnknown.Eligible())
	assert.False(t, StatusUsed.Eligible())
	assert.False(t, Status("Banned").Eligible())
	assert.Equal(t, "Unknown", StatusUnknown.String())
	assert.Equal(t, "Not Used", StatusNotUsed.String())
}
