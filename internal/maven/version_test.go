package maven

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0.0", 0},
		{"1.0-final", "1", 0},
		{"1.9", "1.10", -1},
		{"2.0-alpha-1", "2.0-beta-1", -1},
		{"2.0-rc1", "2.0", -1},
		{"2.0-SNAPSHOT", "2.0", -1},
		{"2.0-rc1", "2.0-SNAPSHOT", -1},
		{"2.0", "2.0-sp1", -1},
		{"2.0.1", "2.0-sp1", 1},
		{"010", "9", 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CompareVersions(tc.a, tc.b), "%s vs %s", tc.a, tc.b)
		assert.Equal(t, -tc.want, CompareVersions(tc.b, tc.a), "%s vs %s", tc.b, tc.a)
	}
}

func TestVersionRange(t *testing.T) {
	vr, err := ParseVersionRange("[1.0,2.0),[3.0,)")
	require.NoError(t, err)
	assert.True(t, vr.Contains("1.0"))
	assert.True(t, vr.Contains("1.99"))
	assert.False(t, vr.Contains("2.0"))
	assert.True(t, vr.Contains("3.5"))

	best, ok := vr.Highest([]string{"1.5", "2.5", "3.1", "0.9"})
	require.True(t, ok)
	assert.Equal(t, "3.1", best)

	pinned, err := ParseVersionRange("[1.4.2]")
	require.NoError(t, err)
	v, ok := pinned.Pinned()
	assert.True(t, ok)
	assert.Equal(t, "1.4.2", v)

	_, err = ParseVersionRange("[2.0,1.0]")
	assert.Error(t, err)
	_, err = ParseVersionRange("(1.0)")
	assert.Error(t, err)
}

func TestInterpolateNestedAndUnknown(t *testing.T) {
	props := map[string]string{"a": "${b}", "b": "x", "project.version": "1"}
	assert.Equal(t, "x-1", interpolate("${a}-${project.version}", props))
	assert.Equal(t, "${missing}", interpolate("${missing}", props))
	assert.True(t, unresolved(interpolate("${missing}", props)))
}
