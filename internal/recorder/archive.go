package recorder

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
)

// WriteArchive stores a summary as zstd-compressed JSON next to the video
// artifact. The archive is the portable form of the timeline: it survives
// database resets and can be shipped to another machine for review.
func WriteArchive(path string, sum *Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", path, err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("archive: zstd writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(sum); err != nil {
		enc.Close()
		return fmt.Errorf("archive: encode summary: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("archive: flush: %w", err)
	}
	return f.Close()
}

// ReadArchive loads a summary written by WriteArchive.
func ReadArchive(path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("archive: zstd reader: %w", err)
	}
	defer dec.Close()

	var sum Summary
	if err := json.NewDecoder(dec).Decode(&sum); err != nil {
		return nil, fmt.Errorf("archive: decode summary: %w", err)
	}
	return &sum, nil
}
