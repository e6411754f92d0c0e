package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// OutputWriter persists the records of one category at a time.
type OutputWriter interface {
	Write(category string, records []*models.ProductRecord) error
	Close() error
	Validate() error
	Files() []string
}

// CSVWriter writes one CSV file per category into a directory.
//
// The header is the column set of the first record. Columns that only later
// records carry are dropped; columns a later record lacks are left empty.
type CSVWriter struct {
	dir   string
	files []string
	mu    sync.Mutex
}

// NewCSVWriter returns a writer targeting dir. The directory is created on
// the first write.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if dir == "" {
		return nil, fmt.Errorf("csv output dir cannot be empty")
	}
	return &CSVWriter{dir: dir}, nil
}

// Write creates or truncates the category file and writes all records.
func (cw *CSVWriter) Write(category string, records []*models.ProductRecord) error {
	if len(records) == 0 {
		return nil
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()

	filename := filepath.Join(cw.dir, parser.OutputName(category, ".csv"))
	if err := ensureDir(filename); err != nil {
		return err
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	header := records[0].Columns()
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(header))
	for _, record := range records {
		values := make(map[string]string, len(header))
		for _, field := range record.Fields() {
			values[field.Name] = field.Value
		}
		for i, column := range header {
			row[i] = values[column]
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close csv file: %w", err)
	}

	cw.files = append(cw.files, filename)
	return nil
}

// Close is a no-op; every Write closes its own file.
func (cw *CSVWriter) Close() error {
	return nil
}

// Validate ensures every written file has content.
func (cw *CSVWriter) Validate() error {
	return validateFiles(cw.Files(), "csv")
}

// Files lists the files written so far.
func (cw *CSVWriter) Files() []string {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	out := make([]string, len(cw.files))
	copy(out, cw.files)
	return out
}

// JSONWriter writes one newline-delimited JSON file per category. Every record
// keeps all of its own keys.
type JSONWriter struct {
	dir   string
	files []string
	mu    sync.Mutex
}

// NewJSONWriter returns a writer targeting dir.
func NewJSONWriter(dir string) (*JSONWriter, error) {
	if dir == "" {
		return nil, fmt.Errorf("json output dir cannot be empty")
	}
	return &JSONWriter{dir: dir}, nil
}

// Write creates or truncates the category file and writes all records.
func (jw *JSONWriter) Write(category string, records []*models.ProductRecord) error {
	if len(records) == 0 {
		return nil
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	filename := filepath.Join(jw.dir, parser.OutputName(category, ".jsonl"))
	if err := ensureDir(filename); err != nil {
		return err
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}
	defer f.Close()

	buffer := bufio.NewWriter(f)
	encoder := json.NewEncoder(buffer)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}
	if err := buffer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close json file: %w", err)
	}

	jw.files = append(jw.files, filename)
	return nil
}

// Close is a no-op; every Write closes its own file.
func (jw *JSONWriter) Close() error {
	return nil
}

// Validate ensures every written file has content.
func (jw *JSONWriter) Validate() error {
	return validateFiles(jw.Files(), "json")
}

// Files lists the files written so far.
func (jw *JSONWriter) Files() []string {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	out := make([]string, len(jw.files))
	copy(out, jw.files)
	return out
}

func validateFiles(files []string, kind string) error {
	for _, name := range files {
		info, err := os.Stat(name)
		if err != nil {
			return fmt.Errorf("stat %s file: %w", kind, err)
		}
		if info.Size() <= 0 {
			return fmt.Errorf("%s file %q is empty", kind, name)
		}
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
