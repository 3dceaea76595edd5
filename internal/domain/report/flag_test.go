package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeFlag(t *testing.T) {
	tests := []struct {
		result, normalRange, want string
	}{
		{"15", "10-20", FlagNormal},
		{"25", "10-20", FlagHigh},
		{"8", "10-20", FlagLow},
		{"10", "10-20", FlagNormal},
		{"20", "10-20", FlagNormal},
		{"3", "< 5", FlagNormal},
		{"6", "< 5", FlagHigh},
		{"5", "<5", FlagHigh},
		{"5", "<=5", FlagHigh},
		{"abc", "10-20", FlagNone},
		{"abc", "< 5", FlagNone},
		{"", "10-20", FlagNone},
		{" 13.5 ", " 13.0 - 17.0 ", FlagNormal},
		{"12.9", "13.0-17.0", FlagLow},
		{"-3", "-5 - -1", FlagNormal},
		{"-6", "-5--1", FlagLow},
		{"45", "> 40", FlagNormal},
		{"40", ">40", FlagLow},
		{"39", ">=40", FlagLow},
		{"0.5", "<.8", FlagNormal},
		{"15", "negative", FlagNone},
		{"15", "", FlagNone},
		{"15", "10 to 20", FlagNone},
		{"25", "10-20 mg/dL", FlagHigh},
		{"15", "10 - 20 mg/dL", FlagNormal},
		{"4.1", "4.5-5.5 million/cmm", FlagLow},
		{"6", "< 5 (fasting)", FlagHigh},
		{"45", ">40 years", FlagNormal},
		{"15", "10-20-30", FlagNone},
		{"15", "10-20.5.1", FlagNone},
		{"NaN", "10-20", FlagNone},
		{"Inf", "< 5", FlagNone},
	}

	for _, tt := range tests {
		t.Run(tt.result+"/"+tt.normalRange, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeFlag(tt.result, tt.normalRange))
		})
	}
}

func TestResolveFlag(t *testing.T) {
	assert.Equal(t, FlagLow, ResolveFlag("25", "10-20", FlagLow), "explicit flag wins")
	assert.Equal(t, FlagHigh, ResolveFlag("25", "10-20", ""))
	assert.Equal(t, FlagNone, ResolveFlag("n/a", "10-20", ""))
}

func TestValidFlag(t *testing.T) {
	for _, f := range []string{FlagNormal, FlagLow, FlagHigh, FlagNone} {
		assert.True(t, ValidFlag(f), f)
	}
	assert.False(t, ValidFlag("Critical"))
	assert.False(t, ValidFlag("normal"))
}
