package filesystem

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// FileContent is the text returned by ReadFile.
type FileContent struct {
	Path       string `json:"path"`
	Content    string `json:"content"`
	StartLine  int    `json:"start_line"`
	Lines      int    `json:"lines"`
	TotalLines int    `json:"total_lines"`
	// Truncated is set when the file was larger than the read limit.
	Truncated bool `json:"truncated"`
}

// ReadFile reads a text file. offset is the zero-based first line and limit
// the maximum number of lines; limit 0 reads to the end.
func (s *Service) ReadFile(ctx context.Context, path string, offset, limit int) (*FileContent, error) {
	if offset < 0 || limit < 0 {
		return nil, fmt.Errorf("offset and limit must not be negative")
	}
	abs, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: %w", abs, ErrIsDirectory)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxReadBytes+1))
	if err != nil {
		return nil, err
	}
	fc := &FileContent{Path: abs}
	if int64(len(data)) > s.cfg.MaxReadBytes {
		data = data[:s.cfg.MaxReadBytes]
		fc.Truncated = true
	}
	if fc.Truncated {
		data = trimPartialRune(data)
	}
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return nil, fmt.Errorf("%s: %w", abs, ErrBinaryFile)
	}

	lines := strings.SplitAfter(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	fc.TotalLines = len(lines)
	if offset > len(lines) {
		offset = len(lines)
	}
	end := len(lines)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	fc.StartLine = offset + 1
	fc.Lines = end - offset
	fc.Content = strings.Join(lines[offset:end], "")
	return fc, nil
}

// trimPartialRune drops a multi-byte rune cut off at the end of data.
func trimPartialRune(data []byte) []byte {
	for i := 0; i < utf8.UTFMax-1 && len(data) > 0; i++ {
		r, size := utf8.DecodeLastRune(data)
		if r != utf8.RuneError || size > 1 {
			return data
		}
		data = data[:len(data)-1]
	}
	return data
}
