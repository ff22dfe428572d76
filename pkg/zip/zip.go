package zip

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
)

// Entry is a single image destined for the archive. Data is the base64
// payload as stored, decoded during archiving.
type Entry struct {
	Name   string
	MIME   string
	Base64 string
}

// ArchiveImages packs base64-stored images into a zip, deriving file
// extensions from each entry's MIME type. Entries that fail to decode are
// skipped rather than failing the whole archive.
func ArchiveImages(entries []Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for i, entry := range entries {
		data, err := base64.StdEncoding.DecodeString(entry.Base64)
		if err != nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = fmt.Sprintf("design-%d", i+1)
		}
		w, err := zw.Create(name + extensionFor(entry.MIME))
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func extensionFor(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
