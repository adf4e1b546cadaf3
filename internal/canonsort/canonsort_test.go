package canonsort

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want int // sign only
	}{
		{"equal", []string{"com", "a"}, []string{"com", "a"}, 0},
		{"shorter label first", []string{"com", "b"}, []string{"com", "aa"}, -1},
		{"lexical on equal length", []string{"com", "b"}, []string{"com", "a"}, 1},
		{"fewer labels first", []string{"com", "a"}, []string{"com", "a", "x"}, -1},
		{"top level decides", []string{"org", "a"}, []string{"com", "z", "z"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(tt.a, tt.b)
			switch {
			case tt.want < 0:
				assert.Negative(t, got)
			case tt.want > 0:
				assert.Positive(t, got)
			default:
				assert.Zero(t, got)
			}
		})
	}
}

func TestLines(t *testing.T) {
	in := []string{
		",a.org,,1,l,g,0",
		",b.com,,1,l,g,1",
		",zz$,,1,l,g,2",
		",aa.com,,1,l,g,0",
		"bogus",
		",x.a.com,,1,l,g",
		",a.com,,1,l,g,0",
		",^ads,,1,l,g,2",
		",c.com,,1,l,g,7",
	}

	got, res := Lines(in)

	want := []string{
		",^ads,,1,l,g,2",
		",zz$,,1,l,g,2",
		",a.com,,1,l,g,0",
		",x.a.com,,1,l,g",
		",b.com,,1,l,g,1",
		",aa.com,,1,l,g,0",
		",a.org,,1,l,g,0",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Lines() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Result{Rows: 9, Regex: 2, Domains: 5, Ignored: 2}, res)
}

func TestLines_StableForDuplicates(t *testing.T) {
	got, _ := Lines([]string{",a.com,,1,first,g,0", ",a.com,,1,second,g,1"})
	assert.Equal(t, []string{",a.com,,1,first,g,0", ",a.com,,1,second,g,1"}, got)
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.fat")
	require.NoError(t, os.WriteFile(path, []byte(",b.com,,1,l,g,0\r\n,a.com,,1,l,g,0\r\n"), 0644))

	res, err := File(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, path+".sorted", res.Output)

	data, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	assert.Equal(t, ",a.com,,1,l,g,0\r\n,b.com,,1,l,g,0\r\n", string(data))
}

func TestFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.fat")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	res, err := File(path, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Rows)

	data, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	assert.Equal(t, "\n", string(data))
}

func TestFile_Missing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "absent.fat"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
