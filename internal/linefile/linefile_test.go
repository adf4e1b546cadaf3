package linefile

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.fat")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReader_Next(t *testing.T) {
	r := NewReader(strings.NewReader("one\ntwo\r\n\nlast"))

	var lines []string
	var idxs []int
	for {
		line, idx, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		lines = append(lines, line)
		idxs = append(idxs, idx)
	}

	assert.Equal(t, []string{"one", "two\r", "", "last"}, lines)
	assert.Equal(t, []int{0, 1, 2, 3}, idxs)
}

func TestReader_LongLine(t *testing.T) {
	long := strings.Repeat("x", 3*readBufferSize)
	r := NewReader(strings.NewReader(long + "\nshort\n"))

	line, _, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, long, line)

	line, idx, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "short", line)
	assert.Equal(t, 1, idx)
}

func TestCursor_ForwardOnly(t *testing.T) {
	long := strings.Repeat("y", 2*readBufferSize)
	path := writeFile(t, "l0\n"+long+"\nl2\r\nl3\nl4")

	c, err := Open(path)
	require.NoError(t, err)
	defer c.Close()

	got, err := c.Line(0)
	require.NoError(t, err)
	assert.Equal(t, "l0", got)

	got, err = c.Line(2)
	require.NoError(t, err, "skips a line longer than the buffer")
	assert.Equal(t, "l2\r", got)

	got, err = c.Line(4)
	require.NoError(t, err)
	assert.Equal(t, "l4", got)
	assert.Equal(t, 5, c.Position())

	_, err = c.Line(3)
	assert.True(t, errors.Is(err, ErrBehindCursor))
}

func TestCursor_PastEnd(t *testing.T) {
	path := writeFile(t, "a\nb\n")
	c, err := Open(path)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Line(5)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriters_CreateThenAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "EasyList.txt")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0644))

	ws := NewWriters()
	require.NoError(t, ws.Create("EasyList", path))
	require.NoError(t, ws.Write("EasyList", `,^ad\.,,1,EasyList,G,2`))
	require.NoError(t, ws.CloseOrigin("EasyList"))

	require.NoError(t, ws.Append("EasyList", path))
	require.NoError(t, ws.Write("EasyList", ",a.com,,1,EasyList,G,0"))
	require.NoError(t, ws.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ",^ad\\.,,1,EasyList,G,2\n,a.com,,1,EasyList,G,0\n", string(data))
}

func TestWriters_UnknownOrigin(t *testing.T) {
	ws := NewWriters()
	err := ws.Write("missing", "row")
	assert.ErrorIs(t, err, ErrNoWriter)
}

func TestWriters_DoubleOpen(t *testing.T) {
	dir := t.TempDir()
	ws := NewWriters()
	defer ws.Close()

	require.NoError(t, ws.Create("a", filepath.Join(dir, "a.txt")))
	assert.Error(t, ws.Create("a", filepath.Join(dir, "b.txt")))
}
