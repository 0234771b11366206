package xsampling

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// ErrInvalidRate 采样比率不在 [0, 1] 范围内或为 NaN
var ErrInvalidRate = errors.New("xsampling: rate must be in [0, 1]")

// Sampler 决定一条新链路是否采样。
//
// 只在本进程新建根上下文时调用；继承自上游的上下文沿用上游的采样标志。
type Sampler interface {
	ShouldSample(traceID string) bool
}

type constSampler bool

func (s constSampler) ShouldSample(string) bool { return bool(s) }

func (s constSampler) String() string {
	if s {
		return "always"
	}
	return "never"
}

// Always 全部采样
func Always() Sampler { return constSampler(true) }

// Never 全部不采样
func Never() Sampler { return constSampler(false) }

// RatioSampler 按 trace ID 一致性采样。
//
// 同一 trace ID 在所有进程中得到相同的决策：xxhash 是确定性的，
// 下游服务用相同比率重新决策时结论与上游一致。
type RatioSampler struct {
	rate float64
}

// NewRatioSampler 创建按比率采样的 Sampler。
func NewRatioSampler(rate float64) (*RatioSampler, error) {
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}
	return &RatioSampler{rate: rate}, nil
}

// ShouldSample traceID 为空时退化为随机采样。
func (s *RatioSampler) ShouldSample(traceID string) bool {
	switch {
	case s.rate <= 0:
		return false
	case s.rate >= 1:
		return true
	case traceID == "":
		return randomFloat64() < s.rate
	}
	return float64(xxhash.Sum64String(traceID))/float64(math.MaxUint64) < s.rate
}

// Rate 返回采样比率
func (s *RatioSampler) Rate() float64 { return s.rate }

func (s *RatioSampler) String() string { return fmt.Sprintf("ratio(%g)", s.rate) }

// randomFloat64 返回 [0, 1) 内的随机数。
//
// crypto/rand 失败意味着系统熵源不可用，直接 panic。
func randomFloat64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("xsampling: crypto/rand.Read failed: " + err.Error())
	}
	return float64(binary.LittleEndian.Uint64(buf[:])>>11) / (1 << 53)
}
