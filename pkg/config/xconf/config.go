package xconf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 配置文件格式
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

var (
	// ErrEmptyPath 配置文件路径为空
	ErrEmptyPath = errors.New("xconf: empty config path")

	// ErrUnsupportedFormat 不支持的配置格式
	ErrUnsupportedFormat = errors.New("xconf: unsupported config format")

	// ErrLoadFailed 读取配置文件失败
	ErrLoadFailed = errors.New("xconf: failed to load config")

	// ErrParseFailed 解析配置内容失败
	ErrParseFailed = errors.New("xconf: failed to parse config")

	// ErrUnmarshalFailed 反序列化到结构体失败
	ErrUnmarshalFailed = errors.New("xconf: failed to unmarshal config")

	// ErrNotReloadable 从字节数据创建的配置不支持重载和监视
	ErrNotReloadable = errors.New("xconf: config created from bytes is not reloadable")
)

// Config 配置接口
//
// 基础的键值读取请直接使用 Client() 返回的 koanf 实例。
type Config interface {
	Client() *koanf.Koanf

	// Unmarshal 将 path 下的配置反序列化到 target，path 为空时反序列化全部。
	Unmarshal(path string, target any) error

	// Reload 重新读取配置文件，并发安全。
	Reload() error

	// Path 返回文件路径，从字节数据创建时为空。
	Path() string

	Format() Format
}

// Option 配置加载选项
type Option func(*options)

type options struct {
	delim string
	tag   string
}

// WithDelim 设置键分隔符，默认 "."。
func WithDelim(delim string) Option { return func(o *options) { o.delim = delim } }

// WithTag 设置结构体标签名，默认 "koanf"。
func WithTag(tag string) Option { return func(o *options) { o.tag = tag } }

type koanfConfig struct {
	mu     sync.RWMutex
	k      *koanf.Koanf
	path   string
	format Format
	opts   options
}

// New 从文件加载配置，按扩展名（.yaml/.yml/.json）识别格式。
func New(path string, opts ...Option) (Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	c := newConfig(format, opts)
	c.path = path
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewFromBytes 从字节数据创建配置，空数据得到空配置。
func NewFromBytes(data []byte, format Format, opts ...Option) (Config, error) {
	if format != FormatYAML && format != FormatJSON {
		return nil, ErrUnsupportedFormat
	}
	c := newConfig(format, opts)
	if len(data) > 0 {
		k, err := parse(data, format, c.opts.delim)
		if err != nil {
			return nil, err
		}
		c.k = k
	}
	return c, nil
}

func newConfig(format Format, opts []Option) *koanfConfig {
	o := options{delim: ".", tag: "koanf"}
	for _, opt := range opts {
		opt(&o)
	}
	return &koanfConfig{k: koanf.New(o.delim), format: format, opts: o}
}

func (c *koanfConfig) Client() *koanf.Koanf {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.k
}

func (c *koanfConfig) Unmarshal(path string, target any) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.k.UnmarshalWithConf(path, target, koanf.UnmarshalConf{Tag: c.opts.tag}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

func (c *koanfConfig) Reload() error {
	if c.path == "" {
		return ErrNotReloadable
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	k, err := parse(data, c.format, c.opts.delim)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.k = k
	c.mu.Unlock()
	return nil
}

func (c *koanfConfig) Path() string { return c.path }

func (c *koanfConfig) Format() Format { return c.format }

func formatOf(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}

func parse(data []byte, format Format, delim string) (*koanf.Koanf, error) {
	var parser koanf.Parser = yaml.Parser()
	if format == FormatJSON {
		parser = json.Parser()
	}
	k := koanf.New(delim)
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return k, nil
}
