package warehouse

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// stagingFiles lists the CSV files under dir matching pattern, plus their
// gzipped counterparts, in a stable order.
func stagingFiles(dir, pattern string) ([]string, error) {
	plain, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("warehouse: bad file pattern %q: %w", pattern, err)
	}
	gzipped, err := filepath.Glob(filepath.Join(dir, pattern+".gz"))
	if err != nil {
		return nil, fmt.Errorf("warehouse: bad file pattern %q: %w", pattern, err)
	}

	files := append(plain, gzipped...)
	sort.Strings(files)
	return files, nil
}

// gzipReadCloser closes both the gzip stream and the underlying file.
type gzipReadCloser struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Close() error {
	gzErr := g.Reader.Close()
	if err := g.file.Close(); err != nil {
		return err
	}
	return gzErr
}

// openStagingFile opens a staging CSV, transparently decompressing .gz
// exports.
func openStagingFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	return &gzipReadCloser{Reader: gz, file: f}, nil
}

// rowReader yields CSV records keyed by the header row's column names.
type rowReader struct {
	reader *csv.Reader
	header []string
}

// newRowReader reads the header row and prepares the reader for iteration.
func newRowReader(r io.Reader) (*rowReader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // tolerate ragged exports; missing cells read as ""

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	return &rowReader{reader: cr, header: header}, nil
}

// Next returns the next record as a column-name map, or io.EOF at the end of
// the file.
func (rr *rowReader) Next() (csvRow, error) {
	record, err := rr.reader.Read()
	if err != nil {
		return nil, err
	}

	row := make(csvRow, len(rr.header))
	for i, col := range rr.header {
		if i < len(record) {
			row[col] = record[i]
		}
	}
	return row, nil
}
