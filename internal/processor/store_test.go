package processor

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngPayload(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStoreSaveToDirectory(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	payload := pngPayload(t, 12, 7)
	at := time.Date(2024, 5, 1, 12, 30, 45, 0, time.FixedZone("CEST", 2*3600))
	meta, err := store.Save(TransferResult{SessionID: "0f8e2a6c-1234", Payload: payload, ReceivedAt: at})
	require.NoError(t, err)

	assert.Equal(t, "image-20240501T103045Z-0f8e2a6c.png", meta.Name)
	assert.Equal(t, filepath.Join(dir, meta.Name), meta.Path)
	assert.Equal(t, "image/png", meta.MimeType)
	assert.Equal(t, int64(len(payload)), meta.Size)
	assert.Equal(t, 12, meta.Width)
	assert.Equal(t, 7, meta.Height)

	sum := sha256.Sum256(payload)
	assert.Equal(t, hex.EncodeToString(sum[:]), meta.Checksum)

	written, err := os.ReadFile(meta.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, written)
}

func TestStoreCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "incoming") + string(os.PathSeparator)
	store, err := NewStore(dir)
	require.NoError(t, err)

	meta, err := store.Save(TransferResult{SessionID: "abc", Payload: []byte{0x00, 0x01, 0x02}})
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", meta.MimeType)
	assert.Equal(t, ".bin", filepath.Ext(meta.Name))
	assert.FileExists(t, meta.Path)
}

func TestStoreOverwritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "received_image.jpg")
	store, err := NewStore(path)
	require.NoError(t, err)

	_, err = store.Save(TransferResult{SessionID: "one", Payload: []byte("first transfer")})
	require.NoError(t, err)
	meta, err := store.Save(TransferResult{SessionID: "two", Payload: []byte("second")})
	require.NoError(t, err)

	assert.Equal(t, path, meta.Path)
	assert.Equal(t, "received_image.jpg", meta.Name)
	assert.Zero(t, meta.Width, "not a decodable image")

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), written)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestStoreEmptyPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	store, err := NewStore(path)
	require.NoError(t, err)

	meta, err := store.Save(TransferResult{SessionID: "s", Payload: nil})
	require.NoError(t, err)
	assert.Zero(t, meta.Size)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestNewStoreRejectsMissingParent(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "nope", "out.jpg"))
	assert.Error(t, err)

	_, err = NewStore("")
	assert.Error(t, err)
}

func TestStoreRequiresSessionIDForDirectory(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(TransferResult{Payload: []byte("x")})
	assert.ErrorIs(t, err, ErrEmptySessionID)
}

func TestReadPayload(t *testing.T) {
	fs := NewFileService()
	path := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello radio"), 0o644))

	data, err := fs.ReadPayload(path, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello radio"), data)

	_, err = fs.ReadPayload(path, 5)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = fs.ReadPayload(filepath.Join(t.TempDir(), "missing"), 0)
	assert.Error(t, err)
}
