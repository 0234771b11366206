package xrotate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"默认配置", DefaultConfig("/tmp/app.log"), nil},
		{"文件名为空", Config{MaxSizeMB: 1, MaxBackups: 1}, ErrEmptyFilename},
		{"大小为 0", Config{Filename: "a.log", MaxBackups: 1}, ErrInvalidMaxSize},
		{"大小超限", Config{Filename: "a.log", MaxSizeMB: 10241, MaxBackups: 1}, ErrInvalidMaxSize},
		{"无清理策略", Config{Filename: "a.log", MaxSizeMB: 1}, ErrNoCleanupPolicy},
		{"仅按天清理", Config{Filename: "a.log", MaxSizeMB: 1, MaxAgeDays: 3}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), tt.want)
		})
	}
}

func TestRotatorLifecycle(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "nested", "app.log")
	cfg := DefaultConfig(filename)
	cfg.Compress = false
	r, err := New(cfg)
	require.NoError(t, err)

	n, err := r.Write([]byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	require.NoError(t, r.Rotate())

	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Close(), ErrClosed)
	_, err = r.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, r.Rotate(), ErrClosed)

	entries, err := os.ReadDir(filepath.Dir(filename))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 2, "轮转后应存在备份文件")
}

func TestNewInvalid(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrEmptyFilename)
}
