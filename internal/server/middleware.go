package server

import (
	"bytes"
	"compress/gzip"
	stderrors "errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"todoapp/internal/domain/errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// RequestLogger writes one zerolog line per request.
func RequestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		status := ctx.Writer.Status()
		event := log.Info()
		switch {
		case status >= http.StatusInternalServerError:
			event = log.Error()
		case status >= http.StatusBadRequest:
			event = log.Warn()
		}
		path := ctx.FullPath()
		if path == "" {
			path = ctx.Request.URL.Path
		}
		event.
			Str("method", ctx.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", ctx.ClientIP()).
			Msg("request")
	}
}

// RateLimiter allows r requests per second per client IP with bursts of b.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		visitors = make(map[string]*rate.Limiter)
	)
	limiterFor := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		limiter, ok := visitors[ip]
		if !ok {
			limiter = rate.NewLimiter(r, b)
			visitors[ip] = limiter
		}
		return limiter
	}

	return func(ctx *gin.Context) {
		if !limiterFor(ctx.ClientIP()).Allow() {
			abortWithError(ctx, errors.ErrTooManyRequests)
			return
		}
		ctx.Next()
	}
}

type gzipBody struct {
	*gzip.Reader
	body io.Closer
}

func (b gzipBody) Close() error {
	return stderrors.Join(b.Reader.Close(), b.body.Close())
}

// DecompressRequest inflates gzip-encoded request bodies before binding.
func DecompressRequest() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !headerHasToken(ctx.GetHeader("Content-Encoding"), "gzip") {
			ctx.Next()
			return
		}
		zr, err := gzip.NewReader(ctx.Request.Body)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": errors.ErrInvalidGzipRequest.Error(),
				"code":  errors.Code(errors.ErrBadRequest),
			})
			return
		}
		ctx.Request.Body = gzipBody{Reader: zr, body: ctx.Request.Body}
		ctx.Request.Header.Del("Content-Encoding")
		ctx.Request.Header.Del("Content-Length")
		ctx.Request.ContentLength = -1
		ctx.Next()
	}
}

const gzipMinSize = 1024

var gzipWriters = sync.Pool{
	New: func() any { return gzip.NewWriter(io.Discard) },
}

var compressibleTypes = []string{
	"application/json",
	"application/xml",
	"application/javascript",
	"text/html",
	"text/css",
	"text/plain",
	"text/xml",
	"text/javascript",
}

// compressWriter holds output back until it is large enough to be worth
// compressing. Small bodies are written through unchanged.
type compressWriter struct {
	gin.ResponseWriter
	zw          *gzip.Writer
	pending     bytes.Buffer
	passthrough bool
}

func (w *compressWriter) Write(p []byte) (int, error) {
	switch {
	case w.zw != nil:
		n, err := w.zw.Write(p)
		if err != nil {
			return n, errors.ErrGzipCompressionFailed
		}
		return n, nil
	case w.passthrough:
		return w.ResponseWriter.Write(p)
	}

	w.pending.Write(p)
	if w.pending.Len() >= gzipMinSize {
		if !w.compressible() {
			w.passthrough = true
			return len(p), w.release()
		}
		w.start()
		if _, err := w.zw.Write(w.pending.Bytes()); err != nil {
			return 0, errors.ErrGzipCompressionFailed
		}
		w.pending.Reset()
	}
	return len(p), nil
}

func (w *compressWriter) WriteString(s string) (int, error) { return w.Write([]byte(s)) }

func (w *compressWriter) Flush() {
	if w.zw != nil {
		_ = w.zw.Flush()
	} else {
		w.passthrough = true
		_ = w.release()
	}
	w.ResponseWriter.Flush()
}

func (w *compressWriter) compressible() bool {
	switch w.Status() {
	case http.StatusNoContent, http.StatusNotModified, http.StatusPartialContent:
		return false
	}
	header := w.Header()
	if header.Get("Content-Encoding") != "" {
		return false
	}
	ct := strings.ToLower(header.Get("Content-Type"))
	for _, prefix := range compressibleTypes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

func (w *compressWriter) start() {
	w.Header().Del("Content-Length")
	w.Header().Set("Content-Encoding", "gzip")
	w.zw = gzipWriters.Get().(*gzip.Writer)
	w.zw.Reset(w.ResponseWriter)
}

func (w *compressWriter) release() error {
	if w.pending.Len() == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.pending.Bytes())
	w.pending.Reset()
	return err
}

func (w *compressWriter) finish() error {
	if w.zw == nil {
		return w.release()
	}
	err := w.zw.Close()
	gzipWriters.Put(w.zw)
	w.zw = nil
	if err != nil {
		return errors.ErrGzipCompressionFailed
	}
	return nil
}

// CompressResponse gzips responses for clients that accept it.
func CompressResponse() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method == http.MethodHead || !headerHasToken(ctx.GetHeader("Accept-Encoding"), "gzip") {
			ctx.Next()
			return
		}
		addVary(ctx.Writer.Header(), "Accept-Encoding")

		cw := &compressWriter{ResponseWriter: ctx.Writer}
		ctx.Writer = cw
		ctx.Next()

		if err := cw.finish(); err != nil {
			_ = ctx.Error(err)
		}
		ctx.Writer = cw.ResponseWriter
	}
}

func headerHasToken(header, token string) bool {
	for _, part := range strings.Split(strings.ToLower(header), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if name == token {
			return true
		}
	}
	return false
}

func addVary(h http.Header, value string) {
	vary := h.Get("Vary")
	switch {
	case vary == "":
		h.Set("Vary", value)
	case !strings.Contains(vary, value):
		h.Set("Vary", vary+", "+value)
	}
}
