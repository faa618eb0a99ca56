package processor

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

var ErrPayloadTooLarge = errors.New("payload exceeds the configured limit")

// FileService handles basic file operations
type FileService struct{}

// NewFileService creates a new file service
func NewFileService() *FileService {
	return &FileService{}
}

// ReadPayload reads a whole file to send it as an opaque payload. limit <= 0
// disables the size check.
func (f *FileService) ReadPayload(filePath string, limit int64) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}
	if limit > 0 && stat.Size() > limit {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, stat.Size(), limit)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// writeFile writes data to destPath through a temporary file in the same
// directory, so a reader never sees a half-written image.
func (f *FileService) writeFile(destPath string, data []byte) error {
	dir := filepath.Dir(destPath)
	if err := f.ensureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(destPath)+".*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

// ensureDir creates directory if it doesn't exist
func (f *FileService) ensureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// checksum calculates the SHA-256 checksum of data
func (f *FileService) checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// detectMimeType sniffs the payload and returns its MIME type and a matching
// file extension.
func (f *FileService) detectMimeType(data []byte) (string, string) {
	mimeType := http.DetectContentType(data)
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mediaType
	}

	switch mimeType {
	case "image/jpeg":
		return mimeType, ".jpg"
	case "application/octet-stream":
		return mimeType, ".bin"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return mimeType, exts[0]
	}
	return mimeType, ".bin"
}
