package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// FileReader extracts text from a corpus entry.
type FileReader interface {
	CanRead(path string) bool
	ReadText(path string) (string, error)
}

// TextFileReader reads any file as text. Malformed UTF-8 is replaced with
// U+FFFD and a leading UTF-8 or UTF-16 byte order mark selects the decoding.
type TextFileReader struct{}

func (r *TextFileReader) CanRead(path string) bool {
	return true
}

func (r *TextFileReader) ReadText(path string) (string, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read text file: %w", err)
	}

	return DecodeText(buf)
}

// DecodeText decodes raw bytes into a string without failing on bad sequences.
func DecodeText(buf []byte) (string, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(decoder, buf)
	if err != nil {
		return "", fmt.Errorf("failed to decode text: %w", err)
	}

	return string(out), nil
}

// DocumentReader converts office and pdf documents to plain text.
type DocumentReader struct{}

var documentExts = map[string]bool{
	".doc":  true,
	".docx": true,
	".odt":  true,
	".pdf":  true,
	".rtf":  true,
}

func (r *DocumentReader) CanRead(path string) bool {
	return documentExts[strings.ToLower(filepath.Ext(path))]
}

func (r *DocumentReader) ReadText(path string) (string, error) {
	res, err := docconv.ConvertPath(path)
	if err != nil {
		return "", fmt.Errorf("failed to convert document: %w", err)
	}

	return res.Body, nil
}

// DefaultReaders returns the reader chain used when a Store is created
// without explicit readers. The text reader accepts everything, so it goes last.
func DefaultReaders() []FileReader {
	return []FileReader{&DocumentReader{}, &TextFileReader{}}
}
