package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/omeyang/xtracing/pkg/config/xconf"
	"github.com/omeyang/xtracing/pkg/observability/xrotate"
	"github.com/omeyang/xtracing/pkg/resilience/xbreaker"
	"github.com/omeyang/xtracing/pkg/resilience/xretry"
	"github.com/omeyang/xtracing/pkg/xtracing"
)

// ErrInvalidFanOut fan_out 超出 1~16 范围
var ErrInvalidFanOut = errors.New("tracedemo: fan_out must be in [1, 16]")

const maxFanOut = 16

// appConfig 演示服务配置，对应配置文件的顶层结构。
type appConfig struct {
	Server  serverConfig    `koanf:"server"`
	Log     logConfig       `koanf:"log"`
	Tracing xtracing.Config `koanf:"tracing"`
}

type serverConfig struct {
	Addr            string        `koanf:"addr"`
	Upstream        string        `koanf:"upstream"`
	FanOut          int           `koanf:"fan_out"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	ClientTimeout   time.Duration `koanf:"client_timeout"`

	Retry   xretry.Policy     `koanf:"retry"`
	Breaker xbreaker.Settings `koanf:"breaker"`
}

type logConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// File 非空时按 Rotation 轮转写入文件
	File     string          `koanf:"file"`
	Rotation *xrotate.Config `koanf:"rotation"`
}

func defaultConfig() appConfig {
	return appConfig{
		Server: serverConfig{
			Addr:            ":8080",
			FanOut:          1,
			ShutdownTimeout: 10 * time.Second,
			ClientTimeout:   5 * time.Second,
			Retry:           xretry.DefaultPolicy(),
			Breaker:         xbreaker.Settings{Name: "upstream"},
		},
		Log: logConfig{Level: "info", Format: "text"},
		Tracing: xtracing.Config{
			ServiceName: "tracedemo",
		},
	}
}

// loadConfig 在默认值之上叠加配置文件。cfg 为 nil 时直接返回默认值。
func loadConfig(cfg xconf.Config) (appConfig, error) {
	c := defaultConfig()
	if cfg != nil {
		if err := cfg.Unmarshal("", &c); err != nil {
			return appConfig{}, err
		}
	}
	if c.Server.FanOut < 1 || c.Server.FanOut > maxFanOut {
		return appConfig{}, fmt.Errorf("%w: %d", ErrInvalidFanOut, c.Server.FanOut)
	}
	return c, nil
}

// rotation 返回日志文件轮转配置，未配置文件时返回 nil。
func (c logConfig) rotation() *xrotate.Config {
	if c.File == "" {
		return nil
	}
	if c.Rotation != nil {
		r := *c.Rotation
		r.Filename = c.File
		return &r
	}
	r := xrotate.DefaultConfig(c.File)
	return &r
}
