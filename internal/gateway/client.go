// Package gateway is the client for the external diagnosis backend. It owns
// the per-request timeout and is the only place where transport failures are
// translated into the Error taxonomy.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout is the per-request ceiling.
const DefaultTimeout = 30 * time.Second

var tracer = otel.Tracer("agrilens-gateway")

// Image is a binary image payload.
type Image struct {
	Data        []byte
	Filename    string
	ContentType string
}

// DiagnoseRequest is the input of Diagnose.
type DiagnoseRequest struct {
	Image            Image
	Language         string // optional
	FollowupQuestion string // optional
}

// DiagnoseResult is the decoded /predict response.
type DiagnoseResult struct {
	PredictedLabel    string  `json:"predicted_label"`
	ConfidencePercent float64 `json:"confidence"` // 0–100, not trusted
	Narrative         string  `json:"llm_response"`
}

// ChatResult is the decoded /chat response.
type ChatResult struct {
	Response string `json:"response"`
}

// Client calls the diagnosis backend.
type Client struct {
	baseURL   string // e.g. http://localhost:8000/api/agri
	healthURL string // e.g. http://localhost:8000/health
	timeout   time.Duration
	client    *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithTimeout sets the per-request ceiling.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHealthURL overrides the health probe URL.
func WithHealthURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.healthURL = u
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// New creates a gateway client for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	c := &Client{
		baseURL:   baseURL,
		healthURL: DeriveHealthURL(baseURL),
		timeout:   DefaultTimeout,
		// The deadline comes from the request context, not the client.
		client: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DeriveHealthURL maps "http://host:8000/api/agri" to "http://host:8000/health".
func DeriveHealthURL(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return strings.TrimRight(baseURL, "/") + "/health"
	}
	return u.Scheme + "://" + u.Host + "/health"
}

func (c *Client) BaseURL() string   { return c.baseURL }
func (c *Client) HealthURL() string { return c.healthURL }

// Diagnose uploads an image to POST {base}/predict.
func (c *Client) Diagnose(ctx context.Context, req DiagnoseRequest) (*DiagnoseResult, error) {
	const op = "predict"

	body, contentType, err := encodeMultipart(func(w *multipart.Writer) error {
		if err := writeImagePart(w, req.Image); err != nil {
			return err
		}
		if req.Language != "" {
			if err := w.WriteField("language", req.Language); err != nil {
				return err
			}
		}
		if req.FollowupQuestion != "" {
			if err := w.WriteField("followup_question", req.FollowupQuestion); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", op, err)
	}

	var result DiagnoseResult
	if err := c.post(ctx, op, "/predict", body, contentType, &result); err != nil {
		return nil, err
	}
	if result.PredictedLabel == "" {
		return nil, &Error{Kind: ErrDecode, Op: op, Err: errors.New("missing predicted_label")}
	}
	return &result, nil
}

// Chat sends a free-text question to POST {base}/chat.
func (c *Client) Chat(ctx context.Context, query, language string) (*ChatResult, error) {
	const op = "chat"

	body, contentType, err := encodeMultipart(func(w *multipart.Writer) error {
		if err := w.WriteField("query", query); err != nil {
			return err
		}
		if language != "" {
			return w.WriteField("language", language)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", op, err)
	}

	var result ChatResult
	if err := c.post(ctx, op, "/chat", body, contentType, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health probes GET {root}/health. Any 2xx is healthy.
func (c *Client) Health(ctx context.Context) error {
	const op = "health"

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "gateway."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return c.fail(span, transportError(ctx, op, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return c.fail(span, &Error{Kind: ErrServer, Op: op, StatusCode: resp.StatusCode, Body: string(b)})
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// post performs one multipart POST under the per-request timeout and decodes
// a JSON response into out.
func (c *Client) post(ctx context.Context, op, path string, body []byte, contentType string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "gateway."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", http.MethodPost),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return c.fail(span, transportError(ctx, op, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(span, transportError(ctx, op, err))
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.fail(span, &Error{Kind: ErrServer, Op: op, StatusCode: resp.StatusCode, Body: string(respBody)})
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return c.fail(span, &Error{Kind: ErrDecode, Op: op, Err: err})
	}

	log.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("gateway call completed")
	return nil
}

func (c *Client) fail(span trace.Span, err *Error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Kind.Error())
	log.Warn().Err(err).Str("op", err.Op).Msg("gateway call failed")
	return err
}

// transportError classifies a failure of Do or of reading the body.
// A fired deadline on the request context is a timeout; anything else,
// including cancellation by the caller, means the backend was not reached.
func transportError(ctx context.Context, op string, err error) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrTimeout, Op: op, Err: err}
	}
	return &Error{Kind: ErrNetwork, Op: op, Err: err}
}

func encodeMultipart(fill func(*multipart.Writer) error) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := fill(w); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func writeImagePart(w *multipart.Writer, img Image) error {
	filename := img.Filename
	if filename == "" {
		filename = "image.jpg"
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(img.Data)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(img.Data)
	return err
}
