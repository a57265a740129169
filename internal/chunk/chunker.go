package chunk

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	hsherrors "github.com/latchkey-dev/hybridsearch/internal/errors"
)

// LineChunker splits file bytes into line-bounded, overlapping chunks (C1).
// It never inspects content beyond line-splitting; tokenization, parsing and
// embedding all happen downstream against the chunks it produces.
type LineChunker struct {
	ChunkSize    int // lines per chunk
	ChunkOverlap int // overlap lines, strictly < ChunkSize
	MaxFileSize  int64
}

// NewLineChunker creates a chunker with the given configuration. Callers are
// expected to have already validated chunk_overlap < chunk_size (§6); this
// constructor does not re-validate config.
func NewLineChunker(chunkSize, chunkOverlap int, maxFileSize int64) *LineChunker {
	return &LineChunker{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		MaxFileSize:  maxFileSize,
	}
}

var markdownExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
}

func contentTypeForPath(path string) ContentType {
	if markdownExtensions[strings.ToLower(filepath.Ext(path))] {
		return ContentTypeMarkdown
	}
	return ContentTypeCode
}

// Chunk splits file into contiguous, overlapping, line-bounded chunks. An
// empty file yields zero chunks. Chunks are exactly ChunkSize lines except
// the last, advancing by (ChunkSize - ChunkOverlap) lines per step; every
// line of the file appears in at least one chunk (P9).
func (c *LineChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, &hsherrors.CancelledError{Op: "chunk"}
	}

	if c.MaxFileSize > 0 && int64(len(file.Content)) > c.MaxFileSize {
		return nil, &hsherrors.FileTooLargeError{
			Path: file.Path,
			Size: int64(len(file.Content)),
			Max:  c.MaxFileSize,
		}
	}

	lines, offsets := splitLines(file.Content)
	if len(lines) == 0 {
		return []*Chunk{}, nil
	}

	stride := c.ChunkSize - c.ChunkOverlap
	if stride <= 0 {
		stride = c.ChunkSize
	}

	contentType := contentTypeForPath(file.Path)

	var chunks []*Chunk
	idx := 0
	for start := 0; start < len(lines); start += stride {
		end := start + c.ChunkSize
		if end > len(lines) {
			end = len(lines)
		}

		startByte := offsets[start]
		var endByte int
		if end < len(offsets) {
			endByte = offsets[end]
		} else {
			endByte = len(file.Content)
		}

		chunks = append(chunks, &Chunk{
			FileID:      file.Path,
			Index:       idx,
			Content:     string(bytes.Join(lines[start:end], []byte("\n"))),
			ContentType: contentType,
			Language:    file.Language,
			StartLine:   start + 1,
			EndLine:     end,
			StartByte:   startByte,
			EndByte:     endByte,
		})
		idx++

		if end >= len(lines) {
			break
		}
	}

	return chunks, nil
}

// splitLines splits content on '\n' and returns each line alongside the byte
// offset at which it starts. The trailing '\n' is not included in either the
// line content or the next line's start.
func splitLines(content []byte) ([][]byte, []int) {
	if len(content) == 0 {
		return nil, nil
	}

	var lines [][]byte
	var offsets []int

	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			lines = append(lines, content[start:i])
			offsets = append(offsets, start)
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, content[start:])
		offsets = append(offsets, start)
	} else if start == len(content) && len(content) > 0 && content[len(content)-1] == '\n' {
		// trailing newline: no trailing empty line is emitted, matching the
		// "never splits inside a line" contract without inventing a phantom
		// empty final line.
	}

	return lines, offsets
}
