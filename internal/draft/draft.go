// Package draft models a contest entry before submission: metadata, file
// handles, and bonus proofs, plus the pre-flight validation that runs before
// any network call.
package draft

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// File is a handle to local content selected for upload. Open returns a fresh
// reader each call; retries re-read from the start.
type File struct {
	Name string
	Size int64
	MIME string
	Open func() (io.ReadCloser, error)
}

// FromPath builds a File from a local path, sizing it via stat and deriving
// the MIME type from the extension.
func FromPath(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return &File{
		Name: filepath.Base(path),
		Size: info.Size(),
		MIME: strings.TrimSpace(mimeType),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// BonusEntry is an optional supplementary proof tied to one bonus-scoring
// configuration item. ProofURL is resolved during the proof-images stage.
type BonusEntry struct {
	BonusConfigID string
	SNSURL        string
	Proof         *File
	ProofURL      string
}

// Qualifies reports whether the entry participates in the pipeline: it needs
// a non-empty URL or an attached proof file.
func (e *BonusEntry) Qualifies() bool {
	if e == nil {
		return false
	}
	return strings.TrimSpace(e.SNSURL) != "" || e.Proof != nil
}

// Draft is a submission attempt's input. It is created by the caller and
// treated as immutable once a run starts, except for resolved proof URLs
// written back by the proof-images stage.
type Draft struct {
	ContestID         string
	Title             string
	Description       string
	ProductionProcess string
	AITools           []string
	Agreed            bool
	Video             *File
	Thumbnail         *File
	BonusEntries      []BonusEntry
}

// QualifyingBonusEntries returns indexes of entries that participate in the
// proof-images stage.
func (d *Draft) QualifyingBonusEntries() []int {
	var indexes []int
	for i := range d.BonusEntries {
		if d.BonusEntries[i].Qualifies() {
			indexes = append(indexes, i)
		}
	}
	return indexes
}
