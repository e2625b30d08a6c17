package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ResponseErrorHandler turns a completed response into an error, or nil.
type ResponseErrorHandler func(statusCode int, body []byte) error

// Request is a single-use request builder.
type Request struct {
	client       *Client
	headers      map[string]string
	query        url.Values
	body         any
	result       any
	errorHandler ResponseErrorHandler
}

// Response is a completed response with its body read.
type Response struct {
	StatusCode int
	Header     http.Header
	body       []byte
}

func (r *Response) Body() []byte    { return r.body }
func (r *Response) IsSuccess() bool { return r.StatusCode < 400 }

func (r *Request) SetHeader(key, value string) *Request {
	r.headers[key] = value
	return r
}

func (r *Request) SetQueryParam(key, value string) *Request {
	if r.query == nil {
		r.query = url.Values{}
	}
	r.query.Set(key, value)
	return r
}

// SetBody sets a JSON body.
func (r *Request) SetBody(body any) *Request {
	r.body = body
	return r
}

// SetResult decodes a successful JSON body into result.
func (r *Request) SetResult(result any) *Request {
	r.result = result
	return r
}

// SetErrorHandler installs a response classifier.
func (r *Request) SetErrorHandler(h ResponseErrorHandler) *Request {
	r.errorHandler = h
	return r
}

// Get executes a GET.
func (r *Request) Get(ctx context.Context, path string) (*Response, error) {
	return r.execute(ctx, http.MethodGet, path)
}

// Post executes a POST.
func (r *Request) Post(ctx context.Context, path string) (*Response, error) {
	return r.execute(ctx, http.MethodPost, path)
}

func (r *Request) execute(ctx context.Context, method, path string) (*Response, error) {
	c := r.client
	ctx, span := c.tracer.Start(ctx, "http.request",
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
			attribute.String("provider", c.provider),
		),
	)
	defer span.End()

	start := time.Now()
	fullURL := path
	if c.baseURL != "" && !strings.HasPrefix(path, "http") {
		fullURL = strings.TrimSuffix(c.baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	if len(r.query) > 0 {
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + r.query.Encode()
	}

	var bodyReader io.Reader
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to marshal body")
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
		if _, ok := r.headers["Content-Type"]; !ok {
			r.headers["Content-Type"] = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create request")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		r.recordError(ctx, span, err, start)
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		r.recordError(ctx, span, err, start)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, body: body}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if r.errorHandler != nil {
		if herr := r.errorHandler(resp.StatusCode, body); herr != nil {
			span.SetStatus(codes.Error, herr.Error())
			r.record(ctx, false, start)
			return out, herr
		}
	}

	if r.result != nil && out.IsSuccess() && len(body) > 0 {
		if err := json.Unmarshal(body, r.result); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to decode body")
			r.record(ctx, false, start)
			return out, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	r.record(ctx, out.IsSuccess(), start)
	return out, nil
}

func (r *Request) recordError(ctx context.Context, span trace.Span, err error, start time.Time) {
	span.RecordError(err)
	var netErr net.Error
	if errors.Is(err, context.Canceled) {
		span.SetAttributes(attribute.Bool("context.cancelled", true))
	}
	if errors.As(err, &netErr) && netErr.Timeout() {
		span.SetAttributes(attribute.Bool("request.timeout", true))
	}
	span.SetStatus(codes.Error, err.Error())
	r.record(ctx, false, start)
}

func (r *Request) record(ctx context.Context, success bool, start time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("provider", r.client.provider),
		attribute.Bool("success", success),
	)
	r.client.requests.Add(ctx, 1, attrs)
	r.client.latency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
}
