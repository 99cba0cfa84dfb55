package slicer

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
)

// максимальный размер одного распакованного файла внутри контейнера
const maxEntrySize = 64 * 1024 * 1024

// ReadArchive распаковывает 3MF-контейнер (ZIP) в отображение имя → байты.
func ReadArchive(data []byte) (map[string][]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a zip container: %w", err)
	}

	contents := make(map[string][]byte, len(reader.File))
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", entry.Name, err)
		}

		entryData, err := io.ReadAll(io.LimitReader(rc, maxEntrySize))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name, err)
		}

		contents[entry.Name] = entryData
	}

	return contents, nil
}
