package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// brotliWriter compresses everything written through it.
type brotliWriter struct {
	gin.ResponseWriter
	writer  *brotli.Writer
	started bool
}

func (bw *brotliWriter) start() {
	if bw.started {
		return
	}
	bw.started = true
	h := bw.ResponseWriter.Header()
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")
}

func (bw *brotliWriter) WriteHeader(code int) {
	bw.start()
	bw.ResponseWriter.WriteHeader(code)
}

func (bw *brotliWriter) Write(data []byte) (int, error) {
	bw.start()
	return bw.writer.Write(data)
}

func (bw *brotliWriter) WriteString(s string) (int, error) {
	return bw.Write([]byte(s))
}

// Brotli compresses response bodies for clients that accept "br". It is
// meant for bulk downloads such as the results export.
func Brotli(quality int) gin.HandlerFunc {
	if quality < brotli.BestSpeed || quality > brotli.BestCompression {
		quality = brotli.DefaultCompression
	}
	return func(c *gin.Context) {
		if !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		bw := &brotliWriter{
			ResponseWriter: c.Writer,
			writer:         brotli.NewWriterLevel(c.Writer, quality),
		}
		c.Writer = bw
		defer func() {
			if bw.started {
				if err := bw.writer.Close(); err != nil {
					_ = c.Error(err)
				}
			}
		}()
		c.Next()
	}
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc, _, _ = strings.Cut(enc, ";")
		if strings.EqualFold(strings.TrimSpace(enc), "br") {
			return true
		}
	}
	return false
}
