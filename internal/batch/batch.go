// Package batch segments an uploaded stream of log lines into bounded
// groups for handoff to the queue.
package batch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Max is the default maximum number of RawLines per Batch.
const Max = 50

// ErrEmptySource is returned when the input has no non-whitespace content.
var ErrEmptySource = errors.New("batch: empty source")

// Batch is an ordered group of raw, uninterpreted text lines sharing an
// implicit (account, host) context supplied by the caller that enqueues it.
type Batch struct {
	Lines []string
}

// Len reports the number of lines currently accumulated.
func (b *Batch) Len() int {
	return len(b.Lines)
}

// Sink receives completed batches. internal/queue.Queue implements this.
type Sink interface {
	Enqueue(b Batch) error
}

// Segment reads src and pushes Batch values of at most maxLines lines into
// sink, preserving line order. If the first non-empty trimmed line begins
// with '[', the entire source is parsed as a single JSON array and each
// top-level element is re-serialized to a compact JSON string and treated
// as one RawLine; otherwise src is processed line by line.
//
// I/O and JSON-array parse errors are returned to the caller; any batches
// already pushed to sink remain there (no rollback).
func Segment(src io.Reader, maxLines int, sink Sink) error {
	if maxLines <= 0 {
		maxLines = Max
	}

	br := bufio.NewReaderSize(src, 64*1024)
	first, err := peekFirstNonEmptyLine(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptySource
		}
		return fmt.Errorf("batch: reading source: %w", err)
	}
	if first == "" {
		return ErrEmptySource
	}

	if strings.HasPrefix(first, "[") {
		return segmentJSONArray(br, maxLines, sink)
	}
	return segmentLines(br, maxLines, sink)
}

// peekFirstNonEmptyLine drains br to find the first trimmed non-empty line,
// then re-seeds br with the same bytes so the caller can read it again.
func peekFirstNonEmptyLine(br *bufio.Reader) (string, error) {
	data, err := io.ReadAll(br)
	if err != nil {
		return "", err
	}
	// Re-seed br so downstream readers see the same bytes.
	br.Reset(bytes.NewReader(data))

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<24)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func segmentLines(r io.Reader, maxLines int, sink Sink) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<24)

	cur := Batch{Lines: make([]string, 0, maxLines)}
	for scanner.Scan() {
		cur.Lines = append(cur.Lines, scanner.Text())
		if len(cur.Lines) >= maxLines {
			if err := sink.Enqueue(cur); err != nil {
				return fmt.Errorf("batch: enqueue: %w", err)
			}
			cur = Batch{Lines: make([]string, 0, maxLines)}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("batch: scanning source: %w", err)
	}
	if len(cur.Lines) > 0 {
		if err := sink.Enqueue(cur); err != nil {
			return fmt.Errorf("batch: enqueue: %w", err)
		}
	}
	return nil
}

func segmentJSONArray(r io.Reader, maxLines int, sink Sink) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("batch: reading json array: %w", err)
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return fmt.Errorf("batch: parsing json array: %w", err)
	}

	cur := Batch{Lines: make([]string, 0, maxLines)}
	for _, elem := range elements {
		compact, err := compactJSON(elem)
		if err != nil {
			return fmt.Errorf("batch: re-serializing json element: %w", err)
		}
		cur.Lines = append(cur.Lines, compact)
		if len(cur.Lines) >= maxLines {
			if err := sink.Enqueue(cur); err != nil {
				return fmt.Errorf("batch: enqueue: %w", err)
			}
			cur = Batch{Lines: make([]string, 0, maxLines)}
		}
	}
	if len(cur.Lines) > 0 {
		if err := sink.Enqueue(cur); err != nil {
			return fmt.Errorf("batch: enqueue: %w", err)
		}
	}
	return nil
}

func compactJSON(raw json.RawMessage) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}
