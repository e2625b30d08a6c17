// Package httpclient provides a JSON HTTP client instrumented with OTEL
// tracing and request metrics, shared by the quote and feed adapters.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultDialKeepAlive   = 10 * time.Second
	defaultRequestTimeout  = 10 * time.Second
	defaultMaxConnsPerHost = 5
	defaultIdleConnTimeout = 2 * time.Minute

	metricRequestCounter = "http_client_requests_total"
	metricLatency        = "http_client_request_latency_ms"
)

// Client builds instrumented requests against a base URL.
type Client struct {
	http     *http.Client
	provider string
	baseURL  string
	headers  map[string]string
	tracer   trace.Tracer

	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

// Option configures a Client.
type Option func(*options)

type options struct {
	provider     string
	baseURL      string
	timeout      time.Duration
	headers      map[string]string
	roundTripper http.RoundTripper
}

// WithProviderName labels spans and metrics.
func WithProviderName(name string) Option { return func(o *options) { o.provider = name } }

// WithBaseURL prefixes relative request paths.
func WithBaseURL(url string) Option { return func(o *options) { o.baseURL = url } }

// WithRequestTimeout bounds every request.
func WithRequestTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithHeaders sets headers sent on every request.
func WithHeaders(h map[string]string) Option { return func(o *options) { o.headers = h } }

// WithRoundTripper replaces the default transport.
func WithRoundTripper(rt http.RoundTripper) Option { return func(o *options) { o.roundTripper = rt } }

// New creates a Client.
func New(opts ...Option) (*Client, error) {
	o := options{provider: "default", timeout: defaultRequestTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	transport := o.roundTripper
	if transport == nil {
		transport = &http.Transport{
			DialContext:     (&net.Dialer{KeepAlive: defaultDialKeepAlive}).DialContext,
			MaxConnsPerHost: defaultMaxConnsPerHost,
			IdleConnTimeout: defaultIdleConnTimeout,
		}
	}

	meter := otel.GetMeterProvider().Meter(
		"instrumented_http_client",
		metric.WithInstrumentationAttributes(attribute.String("provider", o.provider)),
	)
	requests, err := meter.Int64Counter(metricRequestCounter,
		metric.WithDescription("Total number of HTTP requests"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(metricLatency,
		metric.WithDescription("HTTP request latency in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Client{
		http: &http.Client{
			Timeout: o.timeout,
			Transport: otelhttp.NewTransport(transport,
				otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
					return otelhttptrace.NewClientTrace(ctx)
				}),
			),
		},
		provider: o.provider,
		baseURL:  o.baseURL,
		headers:  o.headers,
		tracer:   otel.Tracer("instrumented_http_client"),
		requests: requests,
		latency:  latency,
	}, nil
}

// NewRequest starts a request.
func (c *Client) NewRequest() *Request {
	r := &Request{client: c, headers: make(map[string]string, len(c.headers))}
	for k, v := range c.headers {
		r.headers[k] = v
	}
	return r
}
