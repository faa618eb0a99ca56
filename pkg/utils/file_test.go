package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDestinationPath(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing.jpg")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	tests := []struct {
		name    string
		path    string
		want    string
		isDir   bool
		wantErr bool
	}{
		{name: "existing directory", path: dir, want: dir, isDir: true},
		{name: "existing file", path: existing, want: existing},
		{name: "new file in existing directory", path: filepath.Join(dir, "new.jpg"), want: filepath.Join(dir, "new.jpg")},
		{name: "new directory with trailing separator", path: filepath.Join(dir, "out") + string(os.PathSeparator), want: filepath.Join(dir, "out"), isDir: true},
		{name: "missing parent", path: filepath.Join(dir, "missing", "new.jpg"), wantErr: true},
		{name: "parent is a file", path: filepath.Join(existing, "new.jpg"), wantErr: true},
		{name: "empty", path: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, isDir, err := ResolveDestinationPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.isDir, isDir)
		})
	}
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "450 B", FormatFileSize(450))
	assert.Equal(t, "1.0 KB", FormatFileSize(1024))
	assert.Equal(t, "1.5 MB", FormatFileSize(1536*1024))
}
