package pipeline

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// MultiWriter fans every category out to several writers in order. The first
// failing writer stops the fan-out for that category.
type MultiWriter struct {
	writers []OutputWriter
	names   []string
}

// NewMultiWriter combines writers; names label errors and must match in length.
func NewMultiWriter(names []string, writers ...OutputWriter) (*MultiWriter, error) {
	if len(writers) == 0 {
		return nil, errors.New("multi writer needs at least one writer")
	}
	if len(names) != len(writers) {
		return nil, fmt.Errorf("multi writer: %d names for %d writers", len(names), len(writers))
	}
	return &MultiWriter{writers: writers, names: names}, nil
}

// NewDualWriter writes CSV files into csvDir and JSONL files into jsonDir.
func NewDualWriter(csvDir, jsonDir string) (*MultiWriter, error) {
	csvWriter, err := NewCSVWriter(csvDir)
	if err != nil {
		return nil, fmt.Errorf("create csv writer: %w", err)
	}
	jsonWriter, err := NewJSONWriter(jsonDir)
	if err != nil {
		return nil, fmt.Errorf("create json writer: %w", err)
	}
	return NewMultiWriter([]string{"csv", "json"}, csvWriter, jsonWriter)
}

// Write hands the category to each writer in order.
func (mw *MultiWriter) Write(category string, records []*models.ProductRecord) error {
	for i, w := range mw.writers {
		if err := w.Write(category, records); err != nil {
			return fmt.Errorf("%s write: %w", mw.names[i], err)
		}
	}
	return nil
}

// Close closes every writer and joins their errors.
func (mw *MultiWriter) Close() error {
	var errs []error
	for i, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s close: %w", mw.names[i], err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks every writer and joins their errors.
func (mw *MultiWriter) Validate() error {
	var errs []error
	for i, w := range mw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s validation: %w", mw.names[i], err))
		}
	}
	return errors.Join(errs...)
}

// Files lists the files of each writer in writer order.
func (mw *MultiWriter) Files() []string {
	var files []string
	for _, w := range mw.writers {
		files = append(files, w.Files()...)
	}
	return files
}
