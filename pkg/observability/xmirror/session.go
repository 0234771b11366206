package xmirror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/valyala/bytebufferpool"
)

// ErrFinished Session 已结束。
var ErrFinished = errors.New("xmirror: session finished")

// State 响应所处阶段。
type State int32

const (
	// StateBuffering 状态码与响应体写入缓冲区，尚未发往客户端
	StateBuffering State = iota
	// StateFlushed 头部已镜像、缓冲内容已刷出，之后的写入直接透传
	StateFlushed
)

func (s State) String() string {
	switch s {
	case StateBuffering:
		return "buffering"
	case StateFlushed:
		return "flushed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Session 单个请求的镜像状态。
//
// 与 http.ResponseWriter 一样，Session 不支持并发写入。
type Session struct {
	m      *Mirror
	ctx    context.Context
	w      http.ResponseWriter
	ids    Identifiers
	buf    *bytebufferpool.ByteBuffer
	status int
	state  State
	done   bool
}

// Begin 读取入站标识并开始缓冲。调用方必须（通常用 defer）调用 Finish。
func (m *Mirror) Begin(w http.ResponseWriter, r *http.Request) *Session {
	return &Session{
		m:   m,
		ctx: r.Context(),
		w:   w,
		ids: ExtractIdentifiers(r.Header),
		buf: bytebufferpool.Get(),
	}
}

// Identifiers 返回请求开始时提取的标识。
func (s *Session) Identifiers() Identifiers { return s.ids }

// State 返回当前阶段。
func (s *Session) State() State { return s.state }

// Writer 返回交给下游的 ResponseWriter。
func (s *Session) Writer() http.ResponseWriter { return (*writer)(s) }

// Finish 镜像缺失的 B3 头部并刷出缓冲内容，归还缓冲区。
//
// 只有第一次调用生效，之后返回 ErrFinished。
func (s *Session) Finish() error {
	if s.done {
		return ErrFinished
	}
	s.done = true
	err := s.flush(false)
	s.release()
	return err
}

// flush 镜像头部并写出状态码与缓冲内容，只在 StateBuffering 下执行一次。
func (s *Session) flush(early bool) error {
	if s.state != StateBuffering {
		return nil
	}
	s.state = StateFlushed
	s.mirror()

	status := s.status
	if status == 0 {
		status = http.StatusOK
	}
	s.w.WriteHeader(status)
	s.m.metrics.Flushed(s.ctx, early)

	if s.buf == nil || s.buf.Len() == 0 {
		return nil
	}
	_, err := s.w.Write(s.buf.B)
	s.buf.Reset()
	return err
}

// mirror 对每个非空标识，仅在响应尚无同名头部时写入。
func (s *Session) mirror() {
	h := s.w.Header()
	for _, p := range s.ids.pairs() {
		name, value := p[0], p[1]
		if value == "" || present(h, name) {
			continue
		}
		h.Set(name, value)
		s.m.metrics.Mirrored(s.ctx, name)
	}
}

// present 大小写不敏感地判断 h 中是否已有 name；
// 下游可能直接以非规范化 key 写入 Header map。
func present(h http.Header, name string) bool {
	if len(h.Values(name)) > 0 {
		return true
	}
	for k, vals := range h {
		if len(vals) > 0 && strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

func (s *Session) release() {
	if s.buf != nil {
		bytebufferpool.Put(s.buf)
		s.buf = nil
	}
}

// =============================================================================
// writer
// =============================================================================

// writer 下游看到的 ResponseWriter，头部直接写在底层 ResponseWriter 上。
type writer Session

func (w *writer) session() *Session { return (*Session)(w) }

func (w *writer) Header() http.Header { return w.w.Header() }

func (w *writer) WriteHeader(code int) {
	s := w.session()
	if s.state == StateFlushed || s.status != 0 {
		return
	}
	// 1xx 信息响应（101 除外）不是最终状态，直接透传
	if code >= 100 && code < 200 && code != http.StatusSwitchingProtocols {
		s.w.WriteHeader(code)
		return
	}
	s.status = code
}

func (w *writer) Write(p []byte) (int, error) {
	s := w.session()
	if s.state == StateFlushed {
		if s.done {
			return 0, ErrFinished
		}
		return s.w.Write(p)
	}
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, _ := s.buf.Write(p)
	if s.m.maxBuffer > 0 && s.buf.Len() > s.m.maxBuffer {
		if err := s.flush(true); err != nil {
			return 0, err
		}
	}
	return n, nil
}

// Flush 缓冲阶段不做任何事；刷出之后转发给底层 ResponseWriter。
func (w *writer) Flush() {
	s := w.session()
	if s.state != StateFlushed || s.done {
		return
	}
	_ = http.NewResponseController(s.w).Flush()
}

// Unwrap 供 http.ResponseController 访问底层 ResponseWriter。
func (w *writer) Unwrap() http.ResponseWriter { return w.w }
