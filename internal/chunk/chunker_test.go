package chunk

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hsherrors "github.com/latchkey-dev/hybridsearch/internal/errors"
)

func makeLines(n int) string {
	lines := make([]string, n)
	for i := 0; i < n; i++ {
		lines[i] = "line " + strconv.Itoa(i+1)
	}
	return strings.Join(lines, "\n")
}

func TestChunk_EmptyFileYieldsZeroChunks(t *testing.T) {
	c := NewLineChunker(512, 50, 10_000_000)
	chunks, err := c.Chunk(context.Background(), &FileInput{Path: "empty.go"})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunk_FileSmallerThanChunkSizeYieldsOneChunk(t *testing.T) {
	c := NewLineChunker(512, 50, 10_000_000)
	content := makeLines(10)
	chunks, err := c.Chunk(context.Background(), &FileInput{Path: "small.go", Content: []byte(content)})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 10, chunks[0].EndLine)
	assert.Equal(t, 0, chunks[0].Index)
}

func TestChunk_OverlapAdvancesByStride(t *testing.T) {
	c := NewLineChunker(10, 2, 10_000_000)
	content := makeLines(25)
	chunks, err := c.Chunk(context.Background(), &FileInput{Path: "f.go", Content: []byte(content)})
	require.NoError(t, err)

	// stride = 10 - 2 = 8: starts at lines 1, 9, 17, 25
	require.Len(t, chunks, 4)
	assert.Equal(t, [2]int{1, 10}, [2]int{chunks[0].StartLine, chunks[0].EndLine})
	assert.Equal(t, [2]int{9, 18}, [2]int{chunks[1].StartLine, chunks[1].EndLine})
	assert.Equal(t, [2]int{17, 25}, [2]int{chunks[2].StartLine, chunks[2].EndLine})
	assert.Equal(t, [2]int{25, 25}, [2]int{chunks[3].StartLine, chunks[3].EndLine})
}

func TestChunk_CoversEveryLine(t *testing.T) {
	c := NewLineChunker(10, 3, 10_000_000)
	const total = 47
	content := makeLines(total)
	chunks, err := c.Chunk(context.Background(), &FileInput{Path: "f.go", Content: []byte(content)})
	require.NoError(t, err)

	covered := make([]bool, total+1)
	for _, ch := range chunks {
		for l := ch.StartLine; l <= ch.EndLine; l++ {
			covered[l] = true
		}
	}
	for l := 1; l <= total; l++ {
		assert.Truef(t, covered[l], "line %d not covered by any chunk", l)
	}
}

func TestChunk_NeverSplitsInsideALine(t *testing.T) {
	c := NewLineChunker(5, 1, 10_000_000)
	content := makeLines(13)
	chunks, err := c.Chunk(context.Background(), &FileInput{Path: "f.go", Content: []byte(content)})
	require.NoError(t, err)

	lines := strings.Split(content, "\n")
	for _, ch := range chunks {
		want := strings.Join(lines[ch.StartLine-1:ch.EndLine], "\n")
		assert.Equal(t, want, ch.Content)
	}
}

func TestChunk_RejectsFileLargerThanMax(t *testing.T) {
	c := NewLineChunker(512, 50, 4)
	_, err := c.Chunk(context.Background(), &FileInput{Path: "big.go", Content: []byte("hello")})
	require.Error(t, err)

	var tooLarge *hsherrors.FileTooLargeError
	assert.ErrorAs(t, err, &tooLarge)
}

func TestChunk_MarkdownExtensionGetsMarkdownContentType(t *testing.T) {
	c := NewLineChunker(512, 50, 10_000_000)
	chunks, err := c.Chunk(context.Background(), &FileInput{Path: "README.md", Content: []byte("# hi\nbody")})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, ContentTypeMarkdown, chunks[0].ContentType)
}

func TestChunk_CodeExtensionGetsCodeContentType(t *testing.T) {
	c := NewLineChunker(512, 50, 10_000_000)
	chunks, err := c.Chunk(context.Background(), &FileInput{Path: "main.go", Content: []byte("package main")})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, ContentTypeCode, chunks[0].ContentType)
}

func TestChunk_TrailingNewlineDoesNotProduceEmptyLine(t *testing.T) {
	c := NewLineChunker(512, 50, 10_000_000)
	chunks, err := c.Chunk(context.Background(), &FileInput{Path: "f.go", Content: []byte("a\nb\nc\n")})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 3, chunks[0].EndLine)
}
