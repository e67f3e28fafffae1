package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
)

// maxSeedImageSize bounds uploaded seed images to 16 MiB
const maxSeedImageSize = 16 << 20

func readMultipartFile(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > maxSeedImageSize {
		return nil, fmt.Errorf("seed image larger than %d bytes", maxSeedImageSize)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open seed image: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxSeedImageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read seed image: %w", err)
	}
	return data, nil
}
