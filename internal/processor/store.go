package processor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"loraimg/pkg/types"
	"loraimg/pkg/utils"
)

var ErrEmptySessionID = errors.New("transfer result has no session id")

const sessionPrefixLen = 8

// TransferResult is a reassembled payload handed over by the receiver.
type TransferResult struct {
	SessionID  string
	Payload    []byte
	ReceivedAt time.Time
}

// Store writes completed transfers to a destination. The destination is either
// a directory that collects one file per transfer, or a single file that every
// transfer overwrites.
type Store struct {
	fileService *FileService
	destPath    string
	isDir       bool
	logger      zerolog.Logger
}

type StoreOption func(s *Store)

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore validates destPath and returns a store writing to it.
func NewStore(destPath string, opts ...StoreOption) (*Store, error) {
	resolved, isDir, err := utils.ResolveDestinationPath(destPath)
	if err != nil {
		return nil, err
	}
	s := &Store{
		fileService: NewFileService(),
		destPath:    resolved,
		isDir:       isDir,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Destination returns the resolved destination path.
func (s *Store) Destination() string {
	return s.destPath
}

// Save writes the payload and returns what was stored.
func (s *Store) Save(result TransferResult) (*types.FileMetadata, error) {
	if s.isDir && result.SessionID == "" {
		return nil, ErrEmptySessionID
	}
	receivedAt := result.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	mimeType, ext := s.fileService.detectMimeType(result.Payload)
	path := s.destPath
	if s.isDir {
		path = filepath.Join(s.destPath, fileName(result.SessionID, receivedAt, ext))
	}

	if err := s.fileService.writeFile(path, result.Payload); err != nil {
		return nil, fmt.Errorf("failed to save transfer %s: %w", result.SessionID, err)
	}

	meta := &types.FileMetadata{
		Name:       filepath.Base(path),
		Path:       path,
		Size:       int64(len(result.Payload)),
		MimeType:   mimeType,
		Checksum:   s.fileService.checksum(result.Payload),
		SessionID:  result.SessionID,
		ReceivedAt: receivedAt,
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(result.Payload)); err == nil {
		meta.Width, meta.Height = cfg.Width, cfg.Height
	} else {
		s.logger.Warn().Err(err).Str("path", path).Msg("saved payload is not a decodable image")
	}

	s.logger.Info().
		Str("session", meta.SessionID).
		Str("path", meta.Path).
		Int64("bytes", meta.Size).
		Str("mime", meta.MimeType).
		Str("sha256", meta.Checksum).
		Msg("payload saved")
	return meta, nil
}

func fileName(sessionID string, t time.Time, ext string) string {
	prefix := sessionID
	if len(prefix) > sessionPrefixLen {
		prefix = prefix[:sessionPrefixLen]
	}
	return fmt.Sprintf("image-%s-%s%s", t.UTC().Format("20060102T150405Z"), prefix, ext)
}
