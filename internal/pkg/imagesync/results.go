package imagesync

import (
	"github.com/ManuelReschke/productimages/app/models"
)

// ItemError reports a failure for one filename in a batch.
type ItemError struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// VariantError reports a variant that could not be produced during ingest.
type VariantError struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// IngestResult is the record after ingest plus the sizes that failed.
type IngestResult struct {
	Image  *models.ProductImage `json:"image"`
	Failed []VariantError       `json:"failed"`
}

// SyncEntry is one record touched by a directory sync. Image is nil when
// the record was deleted along with its last variant.
type SyncEntry struct {
	Filename string               `json:"filename"`
	Image    *models.ProductImage `json:"image"`
	Error    string               `json:"error,omitempty"`
}

// SyncResult summarises one directory sync.
type SyncResult struct {
	Key       string      `json:"key"`
	Added     []SyncEntry `json:"added"`
	Removed   []SyncEntry `json:"removed"`
	Errors    []ItemError `json:"errors"`
	Filenames []string    `json:"filenames"`
	Error     string      `json:"error,omitempty"`
}

// RebuildOptions controls RebuildVariant.
type RebuildOptions struct {
	DryRun bool
}

// RebuildResult lists what a rebuild produced or, for dry runs, would
// produce.
type RebuildResult struct {
	From       string                 `json:"from"`
	To         string                 `json:"to"`
	DryRun     bool                   `json:"dry_run"`
	Candidates []string               `json:"candidates"`
	Images     []*models.ProductImage `json:"images"`
	Errors     []ItemError            `json:"errors"`
	Sync       *SyncResult            `json:"sync,omitempty"`
}

// BatchResult collects the outcome of applying one change to many files.
type BatchResult struct {
	Images []*models.ProductImage `json:"images"`
	Errors []ItemError            `json:"errors"`
}

func newBatchResult() *BatchResult {
	return &BatchResult{Images: []*models.ProductImage{}, Errors: []ItemError{}}
}

func (b *BatchResult) add(img *models.ProductImage, filename string, err error) {
	if err != nil {
		b.Errors = append(b.Errors, ItemError{Filename: filename, Error: err.Error()})
		return
	}
	if img != nil {
		b.Images = append(b.Images, img)
	}
}
