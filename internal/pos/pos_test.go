package pos

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilesAddAndGet(t *testing.T) {
	files := NewFiles()

	id1 := files.Add("a.truth", []byte("line one\nline two\n"))
	id2 := files.Add("b.truth", []byte("x"))

	assert.True(t, id1.Ok())
	assert.True(t, id2.Ok())
	assert.NotEqual(t, id1, id2)

	assert.Equal(t, "a.truth", files.Get(id1).Name)
	assert.Equal(t, "b.truth", files.Get(id2).Name)
	assert.Nil(t, files.Get(FileID(0)), "the zero FileID is never a real file")
	assert.Nil(t, files.Get(FileID(99)), "an id past the end is unknown, not a panic")
}

func TestFileLineCol(t *testing.T) {
	files := NewFiles()
	id := files.Add("t.truth", []byte("abc\ndef\nghi"))
	f := files.Get(id)

	tests := []struct {
		offset   uint32
		wantLine int
		wantCol  int
	}{
		{0, 1, 1},
		{3, 1, 4},
		{4, 2, 1},
		{8, 3, 1},
	}
	for _, tt := range tests {
		line, col := f.LineCol(tt.offset)
		assert.Equal(t, tt.wantLine, line, "offset %d line", tt.offset)
		assert.Equal(t, tt.wantCol, col, "offset %d col", tt.offset)
	}
}

func TestFileLineColClampsPastEnd(t *testing.T) {
	files := NewFiles()
	id := files.Add("t.truth", []byte("short"))
	f := files.Get(id)

	line, col := f.LineCol(1000)
	assert.Equal(t, 1, line)
	assert.GreaterOrEqual(t, col, 1)
}

func TestLossyTextReplacesInvalidUTF8(t *testing.T) {
	files := NewFiles()
	id := files.Add("t.truth", []byte{'a', 0xff, 'b'})
	f := files.Get(id)

	assert.Equal(t, len([]byte{'a', 0xff, 'b'}), len(f.LossyText()), "a byte offset into the source must be the same byte offset into the lossy text")
}

func TestNullSpanIsZeroValue(t *testing.T) {
	assert.Equal(t, Span{}, NullSpan)
	assert.False(t, NullSpan.File.Ok())
}

func TestNewSpanPanicsOnInvertedRange(t *testing.T) {
	assert.Panics(t, func() { NewSpan(FileID(1), 5, 2) })
}
