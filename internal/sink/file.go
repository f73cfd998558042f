package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/openlegaldata/oldp-ingestor/internal/model"
)

var (
	unsafeNameChars = regexp.MustCompile(`[/\\<>:"|?*\s]`)
	repeatedUnders  = regexp.MustCompile(`_+`)
)

// SanitizeFilename replaces characters unsafe in file names with "_"
// and collapses runs of them. Empty results become "unnamed".
func SanitizeFilename(name string) string {
	s := unsafeNameChars.ReplaceAllString(name, "_")
	s = repeatedUnders.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_.")
	if s == "" {
		return "unnamed"
	}
	return s
}

// JSONFileSink writes every record as an indented JSON file below a
// directory: law_books/<code>.json, laws/<book>/<slug>.json and
// cases/<file number>.json. Existing files are overwritten.
type JSONFileSink struct {
	dir string
}

// NewJSONFileSink creates a file sink writing below dir
func NewJSONFileSink(dir string) (*JSONFileSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory is required for the json-file sink")
	}
	return &JSONFileSink{dir: dir}, nil
}

func (s *JSONFileSink) WriteLawBook(ctx context.Context, book model.LawBook) error {
	return s.write(filepath.Join("law_books", SanitizeFilename(book.Code)+".json"), book)
}

func (s *JSONFileSink) WriteLaw(ctx context.Context, law model.Law) error {
	name := law.Slug
	if name == "" {
		name = law.Section
	}
	return s.write(filepath.Join("laws", SanitizeFilename(law.BookCode), SanitizeFilename(name)+".json"), law)
}

func (s *JSONFileSink) WriteCase(ctx context.Context, c model.Case) error {
	return s.write(filepath.Join("cases", SanitizeFilename(c.FileNumber)+".json"), c)
}

func (s *JSONFileSink) write(rel string, v any) error {
	path := filepath.Join(s.dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshal %s: %w", rel, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}
