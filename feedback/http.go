package feedback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vgarvardt/fidebe"
)

// DefaultTimeout is the HTTP client timeout of an HTTPSink without its own client.
const DefaultTimeout = 30 * time.Second

// maxErrorBody is how much of a failed response body ends up in a StatusError.
const maxErrorBody = 1 << 10

// ErrInvalidEndpoint is returned by NewHTTPSink for an endpoint that is not an absolute http(s) URL.
var ErrInvalidEndpoint = errors.New("invalid endpoint")

// StatusError is returned by HTTPSink when the endpoint responds with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("feedback endpoint responded with %d", e.StatusCode)
	}
	return fmt.Sprintf("feedback endpoint responded with %d: %s", e.StatusCode, e.Body)
}

// HTTPSink posts submissions as multipart forms to an endpoint.
// Every Send is exactly one request, failures are not retried.
type HTTPSink struct {
	endpoint string
	client   *http.Client
	header   http.Header
	logger   *slog.Logger
}

// HTTPOption configures an HTTPSink.
type HTTPOption func(s *HTTPSink)

// WithHTTPClient sets the client used for the requests.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSink) { s.client = c }
}

// WithHeader adds a header to every request, e.g. authorization.
func WithHeader(key, value string) HTTPOption {
	return func(s *HTTPSink) { s.header.Add(key, value) }
}

// WithLogger sets the logger, slog.Default is used otherwise.
func WithLogger(l *slog.Logger) HTTPOption {
	return func(s *HTTPSink) { s.logger = l }
}

// NewHTTPSink creates a sink posting to endpoint.
func NewHTTPSink(endpoint string, opts ...HTTPOption) (*HTTPSink, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}

	s := &HTTPSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
		header:   make(http.Header),
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Send implements Sink.
func (s *HTTPSink) Send(ctx context.Context, sub *Submission) error {
	body, contentType, err := Encode(sub)
	if err != nil {
		return fmt.Errorf("could not encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, body)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	for k, vs := range s.header {
		req.Header[k] = append([]string(nil), vs...)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not send submission: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	s.logger.DebugContext(ctx, "Submission sent",
		slog.String("id", sub.ID),
		slog.Int("status", resp.StatusCode),
		slog.Int("attachments", len(sub.Attachments)),
	)
	return nil
}

// Handler serves the receiving side of HTTPSink: it decodes the submission and hands it to sink.
// It responds 202 with the submission ID on success.
func Handler(sink Sink, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		sub, err := Decode(r, DefaultMaxMemory)
		if err != nil {
			logger.WarnContext(r.Context(), "Rejected submission", fidebe.Error(err))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		if err := sink.Send(r.Context(), sub); err != nil {
			logger.ErrorContext(r.Context(), "Could not deliver submission", slog.String("id", sub.ID), fidebe.Error(err))
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
			return
		}

		logger.InfoContext(r.Context(), "Submission accepted",
			slog.String("id", sub.ID),
			slog.Int("attachments", len(sub.Attachments)),
			slog.Int("logs", logCount(sub)),
		)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = fmt.Fprintf(w, "{\"id\":%q}\n", sub.ID)
	})
}

func logCount(s *Submission) int {
	if s.Logs == nil {
		return 0
	}
	return s.Logs.Count
}
