package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Version
		wantErr bool
	}{
		{name: "empty is zero", input: "", want: Empty},
		{name: "major only", input: "1", want: Version{Major: 1}},
		{name: "major minor", input: "1.2", want: Version{Major: 1, Minor: 2}},
		{name: "full", input: "1.2.3", want: Version{Major: 1, Minor: 2, Micro: 3}},
		{name: "qualifier", input: "1.0.2.v20240101-rc_1", want: Version{Major: 1, Micro: 2, Qualifier: "v20240101-rc_1"}},
		{name: "surrounding spaces", input: " 2.0 ", want: Version{Major: 2}},
		{name: "non-numeric", input: "1.a", wantErr: true},
		{name: "negative", input: "-1.0", wantErr: true},
		{name: "v prefix", input: "v1.0.0", wantErr: true},
		{name: "bad qualifier", input: "1.0.0.a+b", wantErr: true},
		{name: "empty segment", input: "1..2", wantErr: true},
		{name: "segment overflows uint64", input: "1.18446744073709551616", wantErr: true},
		{name: "largest segment", input: "18446744073709551615", want: Version{Major: 18446744073709551615}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsParseError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1", "1.0.0", 0},
		{"2.0.0", "1.9.9", 1},
		{"1.2.0", "1.10.0", -1},
		{"1.0.0", "1.0.0.beta", -1},
		{"1.0.0.alpha", "1.0.0.beta", -1},
		{"1.0.0.9", "1.0.0.10", -1},
		{"1.0.0.10", "1.0.0.b", -1},
		{"18446744073709551615.0.0", "1.0.0", 1},
	}

	for _, tt := range tests {
		got := Compare(MustParse(tt.a), MustParse(tt.b))
		if got != tt.want {
			t.Errorf("Compare(%s, %s) = %d, expected %d", tt.a, tt.b, got, tt.want)
		}
		if back := Compare(MustParse(tt.b), MustParse(tt.a)); back != -tt.want {
			t.Errorf("Compare(%s, %s) = %d, expected %d", tt.b, tt.a, back, -tt.want)
		}
	}
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "1.0.0", MustParse("1").String())
	assert.Equal(t, "1.2.3.final", MustParse("1.2.3.final").String())
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		included []string
		excluded []string
		wantErr  bool
	}{
		{
			name:     "bare version is at least",
			input:    "1.0",
			included: []string{"1.0.0", "1.0.2", "99.0.0"},
			excluded: []string{"0.9.9"},
		},
		{
			name:     "closed interval",
			input:    "[1.0,2.0]",
			included: []string{"1.0.0", "1.5.0", "2.0.0"},
			excluded: []string{"0.9.0", "2.0.0.1"},
		},
		{
			name:     "half open ceiling",
			input:    "[1.0,2.0)",
			included: []string{"1.0.0", "1.9.9"},
			excluded: []string{"2.0.0"},
		},
		{
			name:     "half open floor",
			input:    "(1.0,2.0]",
			included: []string{"1.0.1", "2.0.0"},
			excluded: []string{"1.0.0"},
		},
		{
			name:     "open interval",
			input:    "(1.0,2.0)",
			included: []string{"1.5.0"},
			excluded: []string{"1.0.0", "2.0.0"},
		},
		{
			name:     "exact",
			input:    "[1.0.2,1.0.2]",
			included: []string{"1.0.2"},
			excluded: []string{"1.0.1", "1.0.3"},
		},
		{name: "empty is any", input: "", included: []string{"0.0.0", "5.0.0"}},
		{name: "mismatched bracket", input: "[1.0,2.0", wantErr: true},
		{name: "missing opening", input: "1.0,2.0]", wantErr: true},
		{name: "one bound", input: "[1.0]", wantErr: true},
		{name: "three bounds", input: "[1.0,2.0,3.0]", wantErr: true},
		{name: "non-numeric bound", input: "[1.x,2.0)", wantErr: true},
		{name: "floor above ceiling", input: "[2.0,1.0]", wantErr: true},
		{name: "empty half open", input: "[1.0,1.0)", wantErr: true},
		{name: "empty bound", input: "[,1.0)", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseRange(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsParseError(err))
				return
			}
			require.NoError(t, err)
			for _, v := range tt.included {
				assert.True(t, r.Includes(MustParse(v)), "%s should include %s", tt.input, v)
			}
			for _, v := range tt.excluded {
				assert.False(t, r.Includes(MustParse(v)), "%s should exclude %s", tt.input, v)
			}
		})
	}
}

func TestRangeString(t *testing.T) {
	assert.Equal(t, "1.0.0", MustParseRange("1.0").String())
	assert.Equal(t, "[1.0.0,2.0.0)", MustParseRange("[1,2)").String())
	assert.Equal(t, "(1.0.0,2.0.0]", MustParseRange("(1,2]").String())
	assert.True(t, MustParseRange("1.0").IsUnbounded())
	assert.False(t, Exact(MustParse("1.0")).IsUnbounded())
}
