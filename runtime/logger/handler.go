package logger

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
)

// moduleRoot is the import path prefix stripped when deriving module names.
const moduleRoot = "github.com/deathnote2501/fia-v3.0-sub001/"

// FieldHandler is a slog.Handler that enriches records with common fields and
// the speech context fields (see context.go), and optionally filters records
// by the level configured for the calling module.
type FieldHandler struct {
	inner        slog.Handler
	commonFields []slog.Attr
	modules      *ModuleConfig
}

// NewFieldHandler wraps inner. modules may be nil to disable per-module levels.
func NewFieldHandler(inner slog.Handler, modules *ModuleConfig, commonFields ...slog.Attr) *FieldHandler {
	return &FieldHandler{
		inner:        inner,
		commonFields: commonFields,
		modules:      modules,
	}
}

// Enabled reports whether a record at level could be handled.
// With module levels configured the final decision is made in Handle, where
// the caller's PC is known, so Enabled only rejects below the lowest level.
func (h *FieldHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.modules != nil {
		return level >= h.modules.MinLevel()
	}
	return h.inner.Enabled(ctx, level)
}

// Handle adds common and context fields, then delegates to the inner handler.
//
//nolint:gocritic // slog.Record is passed by value per slog.Handler interface contract
func (h *FieldHandler) Handle(ctx context.Context, r slog.Record) error {
	module := ""
	if h.modules != nil {
		module = moduleFromPC(r.PC)
		if r.Level < h.modules.LevelFor(module) {
			return nil
		}
	}

	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	out.AddAttrs(h.commonFields...)
	if module != "" {
		out.AddAttrs(slog.String("logger", module))
	}
	for _, key := range allContextKeys {
		if s, ok := ctx.Value(key).(string); ok && s != "" {
			out.AddAttrs(slog.String(string(key), s))
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(a)
		return true
	})

	return h.inner.Handle(ctx, out)
}

// WithAttrs returns a handler whose inner handler carries attrs.
func (h *FieldHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &FieldHandler{
		inner:        h.inner.WithAttrs(attrs),
		commonFields: h.commonFields,
		modules:      h.modules,
	}
}

// WithGroup returns a handler whose inner handler opens group name.
func (h *FieldHandler) WithGroup(name string) slog.Handler {
	return &FieldHandler{
		inner:        h.inner.WithGroup(name),
		commonFields: h.commonFields,
		modules:      h.modules,
	}
}

var _ slog.Handler = (*FieldHandler)(nil)

// moduleFromPC maps a program counter to a dotted module name.
func moduleFromPC(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	return moduleFromFunction(frame.Function)
}

// moduleFromFunction turns "<root>/runtime/speech.(*Coordinator).Play" into
// "runtime.speech". Functions outside the module yield "".
func moduleFromFunction(fn string) string {
	idx := strings.Index(fn, moduleRoot)
	if idx == -1 {
		return ""
	}
	path := fn[idx+len(moduleRoot):]
	if paren := strings.Index(path, "("); paren != -1 {
		path = path[:paren]
	}
	// the package path ends at the first dot after the last slash
	lastSlash := strings.LastIndex(path, "/")
	if dot := strings.Index(path[lastSlash+1:], "."); dot != -1 {
		path = path[:lastSlash+1+dot]
	}
	return strings.ReplaceAll(strings.TrimSuffix(path, "."), "/", ".")
}
