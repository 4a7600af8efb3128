package pipeline

import (
	"strings"

	"github.com/kilnworks/hivekb/helper"
	"github.com/kilnworks/hivekb/model"
)

// separators are tried in order when snapping a window end to a natural
// boundary: paragraph break, line break, sentence end, word end.
var separators = []string{"\n\n", "\n", ". ", " "}

// WindowChunker creates a chunker that splits text into windows of at most
// chunkSize characters with the given overlap between adjacent windows.
// Window ends snap back to the nearest natural boundary in the second half
// of the window, so sentences are kept together where possible.
func WindowChunker(chunkSize int, overlap int) ChunkFunc {
	return func(text string) ([]ChunkWindow, error) {
		if chunkSize <= 0 {
			return nil, &helper.ValidationError{Field: "chunk_size", Reason: "must be positive"}
		}
		if overlap < 0 || overlap >= chunkSize {
			return nil, &helper.ValidationError{Field: "chunk_overlap", Reason: "must be non-negative and smaller than chunk_size"}
		}

		if strings.TrimSpace(text) == "" {
			return []ChunkWindow{}, nil
		}

		var chunks []ChunkWindow
		runes := []rune(text)
		start := 0
		index := 0

		for start < len(runes) {
			end := start + chunkSize
			if end >= len(runes) {
				end = len(runes)
			} else {
				end = snapToSeparator(runes, start, end)
			}

			content := strings.TrimSpace(string(runes[start:end]))
			if content != "" {
				chunks = append(chunks, ChunkWindow{
					Content:  content,
					Index:    index,
					Start:    start,
					End:      end,
					Metadata: model.Metadata{},
				})
				index++
			}

			if end == len(runes) {
				break
			}
			// Snapping can shrink a window below the overlap, the window
			// start must still advance.
			next := end - overlap
			if next <= start {
				next = end
			}
			start = next
		}

		return chunks, nil
	}
}

// snapToSeparator moves the window end back to just after the last separator
// found in the second half of the window. The end stays put when no
// separator appears there, a hard cut beats an empty window.
func snapToSeparator(runes []rune, start int, end int) int {
	window := string(runes[start:end])
	// LastIndex returns a byte offset, so the half threshold must be in
	// bytes of the window too.
	half := len(window) / 2

	for _, sep := range separators {
		idx := strings.LastIndex(window, sep)
		if idx >= half {
			return start + len([]rune(window[:idx+len(sep)]))
		}
	}

	return end
}
