package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/julienstroheker/wsrelay/internal/config"
	"github.com/julienstroheker/wsrelay/internal/httpclient"
	"github.com/julienstroheker/wsrelay/internal/logging"
)

const copyBufferSize = 32 * 1024

type stackTracer interface {
	StackTrace() errors.StackTrace
}

type errorDetail struct {
	Message string `json:"message"`
	Details string `json:"details"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

// NewHTTPRelayHandler creates a handler that reissues every request against
// the upstream origin and streams the response back unmodified.
// Method, headers and body are forwarded as received; redirects are followed
// by the client. Nothing is retried.
func NewHTTPRelayHandler(upstream *config.Upstream, client *httpclient.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := logging.FromContext(r.Context())
		target := upstream.HTTPURL(r.URL)

		body := r.Body
		if r.ContentLength == 0 {
			body = http.NoBody
		}

		proxyReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
		if err != nil {
			writeRelayError(w, logger, errors.WithStack(err))
			return
		}
		proxyReq.Header = r.Header.Clone()
		proxyReq.ContentLength = r.ContentLength

		resp, err := client.Do(proxyReq)
		if err != nil {
			writeRelayError(w, logger, err)
			return
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		logger.Debug("Upstream responded",
			logging.Int("status", resp.StatusCode),
			logging.String("content_type", resp.Header.Get("Content-Type")))

		// Copy response headers
		for key, values := range resp.Header {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}

		// Write status code
		w.WriteHeader(resp.StatusCode)

		// Stream the body, flushing each chunk so event streams arrive as sent
		if _, err := io.CopyBuffer(newFlushWriter(w), resp.Body, make([]byte, copyBufferSize)); err != nil {
			logger.Warn("Failed to stream response body", logging.Error(err))
		}
	}
}

// writeRelayError answers 500 with the error message and its stack trace
func writeRelayError(w http.ResponseWriter, logger *logging.Logger, err error) {
	if _, ok := err.(stackTracer); !ok {
		err = errors.WithStack(err)
	}

	logger.Error("Error proxying request", logging.Error(err))

	payload, marshalErr := json.Marshal(errorResponse{
		Error: errorDetail{
			Message: "Error proxying request: " + err.Error(),
			Details: fmt.Sprintf("%+v", err),
		},
	})
	if marshalErr != nil {
		payload = []byte(`{"error":{"message":"Error proxying request","details":""}}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write(payload)
}

// flushWriter flushes after every write when the writer supports it
type flushWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func newFlushWriter(w http.ResponseWriter) io.Writer {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return w
	}
	return &flushWriter{w: w, flusher: flusher}
}

func (fw *flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if n > 0 {
		fw.flusher.Flush()
	}
	return n, err
}
