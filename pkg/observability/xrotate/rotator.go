package xrotate

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// ErrEmptyFilename 文件名为空
	ErrEmptyFilename = errors.New("xrotate: filename is required")

	// ErrInvalidMaxSize MaxSizeMB 不在 1~10240 范围内
	ErrInvalidMaxSize = errors.New("xrotate: invalid max_size_mb")

	// ErrNoCleanupPolicy MaxBackups 与 MaxAgeDays 同时为 0，旧文件永不清理
	ErrNoCleanupPolicy = errors.New("xrotate: no cleanup policy configured")

	// ErrClosed 轮转器已关闭
	ErrClosed = errors.New("xrotate: rotator is closed")
)

// Rotator 并发安全的日志轮转写入器。
type Rotator interface {
	io.WriteCloser

	// Rotate 手动触发轮转。
	Rotate() error
}

// Config 日志文件轮转配置，可直接从 xconf 反序列化。
type Config struct {
	Filename   string `koanf:"filename"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
	LocalTime  bool   `koanf:"local_time"`
}

// DefaultConfig 返回 100MB / 7 个备份 / 30 天的默认配置。
func DefaultConfig(filename string) Config {
	return Config{
		Filename:   filename,
		MaxSizeMB:  100,
		MaxBackups: 7,
		MaxAgeDays: 30,
		Compress:   true,
		LocalTime:  true,
	}
}

// Validate 校验配置。
func (c Config) Validate() error {
	if c.Filename == "" {
		return ErrEmptyFilename
	}
	if c.MaxSizeMB < 1 || c.MaxSizeMB > 10240 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxSize, c.MaxSizeMB)
	}
	if c.MaxBackups <= 0 && c.MaxAgeDays <= 0 {
		return ErrNoCleanupPolicy
	}
	return nil
}

// New 基于 lumberjack 创建轮转器，日志目录不存在时自动创建。
func New(cfg Config) (Rotator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	filename := filepath.Clean(cfg.Filename)
	if err := os.MkdirAll(filepath.Dir(filename), 0o750); err != nil {
		return nil, fmt.Errorf("xrotate: create log dir: %w", err)
	}
	return &lumberjackRotator{
		lj: &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
			LocalTime:  cfg.LocalTime,
		},
	}, nil
}

type lumberjackRotator struct {
	mu     sync.RWMutex
	lj     *lumberjack.Logger
	closed bool
}

func (r *lumberjackRotator) Write(p []byte) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return 0, ErrClosed
	}
	return r.lj.Write(p)
}

func (r *lumberjackRotator) Rotate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	return r.lj.Rotate()
}

func (r *lumberjackRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.closed = true
	return r.lj.Close()
}
