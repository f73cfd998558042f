package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"
)

func buildZip(t *testing.T, files map[string][]byte, order []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write(files[name]); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

type bytesFetcher struct {
	data []byte
	err  error
}

func (f bytesFetcher) GetBytes(ctx context.Context, path string) ([]byte, error) {
	return f.data, f.err
}

func TestDecodeXMLFromZip_Latin1(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"readme.txt": []byte("ignored"),
		"doc.xml":    []byte("<a>M\xfcnchen</a>"),
	}, []string{"readme.txt", "doc.xml"})

	got, err := DecodeXMLFromZip(data, "iso-8859-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != "<a>München</a>" {
		t.Errorf("Expected decoded XML, got %q", got)
	}
}

func TestDecodeXMLFromZip_NoXML(t *testing.T) {
	data := buildZip(t, map[string][]byte{"a.txt": []byte("x")}, []string{"a.txt"})
	if _, err := DecodeXMLFromZip(data, ""); !errors.Is(err, ErrNoXML) {
		t.Errorf("Expected ErrNoXML, got %v", err)
	}
}

func TestDecodeXMLFromZip_Corrupt(t *testing.T) {
	if _, err := DecodeXMLFromZip([]byte("not a zip"), ""); !errors.Is(err, ErrNoXML) {
		t.Errorf("Expected ErrNoXML, got %v", err)
	}
}

func TestZipXML_FetchError(t *testing.T) {
	fetchErr := errors.New("boom")
	_, err := ZipXML(context.Background(), bytesFetcher{err: fetchErr}, "/x.zip", "")
	if !errors.Is(err, fetchErr) {
		t.Errorf("Expected fetch error, got %v", err)
	}
	if errors.Is(err, ErrNoXML) {
		t.Error("Fetch failure must not look like a missing document")
	}
}

func TestPDFToHTML_Invalid(t *testing.T) {
	if _, err := PDFToHTML([]byte("not a pdf")); err == nil {
		t.Error("Expected error for invalid PDF")
	}
}
