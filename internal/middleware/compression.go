package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// CompressionConfig controls when response bodies are gzipped.
type CompressionConfig struct {
	// MinSize is the smallest body, in bytes, worth compressing.
	MinSize int
	// CompressibleTypes lists the media types eligible for compression.
	CompressibleTypes []string
}

// DefaultCompressionConfig compresses the JSON API responses; thumbnail
// JPEGs are already compressed and pass through untouched.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		CompressibleTypes: []string{
			"application/json",
			"text/plain",
			"text/html",
		},
	}
}

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
		return w
	},
}

// compressWriter buffers the response until it can tell whether the body is
// large and compressible enough to gzip. Content-Length is unknowable until
// then, so the header write is deferred too.
type compressWriter struct {
	http.ResponseWriter
	config CompressionConfig

	buf        []byte
	status     int
	decided    bool
	gz         *gzip.Writer
	compressed bool
}

func newCompressWriter(w http.ResponseWriter, config CompressionConfig) *compressWriter {
	return &compressWriter{
		ResponseWriter: w,
		config:         config,
		status:         http.StatusOK,
		buf:            make([]byte, 0, config.MinSize+1),
	}
}

// WriteHeader records the status; the underlying header is written when the
// compression decision lands.
func (cw *compressWriter) WriteHeader(status int) {
	if !cw.decided {
		cw.status = status
	}
}

func (cw *compressWriter) Write(data []byte) (int, error) {
	if cw.decided {
		if cw.compressed {
			return cw.gz.Write(data)
		}
		return cw.ResponseWriter.Write(data)
	}

	cw.buf = append(cw.buf, data...)
	if len(cw.buf) > cw.config.MinSize {
		cw.decide()
	}
	return len(data), nil
}

func (cw *compressWriter) typeEligible() bool {
	contentType := cw.Header().Get("Content-Type")
	if contentType == "" {
		return false
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, eligible := range cw.config.CompressibleTypes {
		if mediaType == eligible {
			return true
		}
	}
	return false
}

// decide commits to compressed or plain output and drains the buffer.
func (cw *compressWriter) decide() {
	if cw.decided {
		return
	}
	cw.decided = true

	if len(cw.buf) >= cw.config.MinSize && cw.typeEligible() {
		cw.compressed = true
		cw.Header().Del("Content-Length")
		cw.Header().Set("Content-Encoding", "gzip")
		cw.Header().Add("Vary", "Accept-Encoding")

		cw.gz = gzipWriterPool.Get().(*gzip.Writer)
		cw.gz.Reset(cw.ResponseWriter)
		cw.ResponseWriter.WriteHeader(cw.status)
		_, _ = cw.gz.Write(cw.buf)
	} else {
		cw.ResponseWriter.WriteHeader(cw.status)
		_, _ = cw.ResponseWriter.Write(cw.buf)
	}
	cw.buf = nil
}

// Close drains anything still buffered and recycles the gzip writer.
func (cw *compressWriter) Close() error {
	cw.decide()
	if cw.gz == nil {
		return nil
	}
	err := cw.gz.Close()
	gzipWriterPool.Put(cw.gz)
	cw.gz = nil
	return err
}

// Flush implements http.Flusher.
func (cw *compressWriter) Flush() {
	cw.decide()
	if cw.gz != nil {
		_ = cw.gz.Flush()
	}
	if flusher, ok := cw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Compression gzips large compressible responses for clients that accept it.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			cw := newCompressWriter(w, config)
			defer cw.Close()

			next.ServeHTTP(cw, r)
		})
	}
}
