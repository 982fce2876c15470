// Package source is the external data provider: it fetches the remote coil
// measurement spreadsheet (or reads a local export), decodes it into a flat
// table of raw string cells, and caches an immutable snapshot with explicit
// invalidation. No decision logic lives here.
package source

import (
	"fmt"
	"os"
	"strings"
)

// Table is the raw decoded spreadsheet: one header row plus data rows, all
// cells as strings. The schema adapter gives it types.
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// ReadOptions controls format decoding.
type ReadOptions struct {
	// Delimiter for CSV. If 0, auto-detects among ',', ';', '\t'.
	Delimiter rune
	// SheetName selects an xlsx sheet by name; SheetIndex (1-based) by
	// position. Name wins when both are set; default is the first sheet.
	SheetName  string
	SheetIndex int
}

// Reader decodes one spreadsheet format.
type Reader interface {
	CanRead(filename string) bool
	Read(data []byte, opt ReadOptions) (*Table, error)
}

var registry []Reader

func init() {
	registry = []Reader{xlsxReader{}, csvReader{}}
}

// ReadBytes decodes content using the reader registered for the filename
// (extension or content-type hint).
func ReadBytes(name string, data []byte, opt ReadOptions) (*Table, error) {
	for _, r := range registry {
		if r.CanRead(name) {
			return r.Read(data, opt)
		}
	}
	return nil, fmt.Errorf("unsupported table format: %s", name)
}

// ReadFile decodes a local spreadsheet file.
func ReadFile(path string, opt ReadOptions) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ReadBytes(path, data, opt)
}

func hasSuffixFold(name, suffix string) bool {
	return strings.HasSuffix(strings.ToLower(name), suffix)
}
