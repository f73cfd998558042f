package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// ErrNoXML is returned when an archive is corrupt or holds no .xml member.
// Callers skip the document.
var ErrNoXML = errors.New("no xml document in archive")

// Fetcher downloads raw bytes. *transport.Client satisfies it.
type Fetcher interface {
	GetBytes(ctx context.Context, path string) ([]byte, error)
}

// ZipXML downloads a ZIP archive and returns its first XML member decoded
// with the given character encoding.
func ZipXML(ctx context.Context, f Fetcher, url, charset string) (string, error) {
	data, err := f.GetBytes(ctx, url)
	if err != nil {
		return "", err
	}
	xml, err := DecodeXMLFromZip(data, charset)
	if errors.Is(err, ErrNoXML) {
		slog.WarnContext(ctx, "no xml in archive", "url", url, "err", err)
	}
	return xml, err
}

// DecodeXMLFromZip returns the decoded text of the first .xml member
func DecodeXMLFromZip(data []byte, charset string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoXML, err)
	}

	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: open %s: %v", ErrNoXML, f.Name, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: read %s: %v", ErrNoXML, f.Name, err)
		}
		return Decode(raw, charset)
	}

	return "", ErrNoXML
}

// Decode converts raw bytes in the named character encoding to a string.
// An empty name means UTF-8.
func Decode(raw []byte, charset string) (string, error) {
	enc, err := lookupEncoding(charset)
	if err != nil {
		return "", err
	}
	if enc == nil {
		return string(raw), nil
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", charset, err)
	}
	return string(out), nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "iso-8859-1", "latin1", "latin-1":
		// htmlindex maps latin1 to windows-1252
		return charmap.ISO8859_1, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return enc, nil
}
