package armor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

// Client binds a resilience [Pipeline] to one named HTTP dependency: a base
// endpoint for relative paths, a transport-level timeout, and an optional
// cookie jar. The configuration is immutable once bound; share one Client
// per dependency for the process lifetime.
//
// Pattern: Adapter — bridges net/http request building and the pipeline's
// handler chain, the transport being the chain's innermost stage.
type Client struct {
	name     string
	base     *url.URL
	timeout  time.Duration
	pipeline *Pipeline
}

// NewClient creates a Client for the dependency described by cfg. Policy
// sections of cfg become pipeline stages via [BuildOptions]; opts are
// applied afterwards and take precedence (tracer, hooks, clock, or a
// replacement transport for tests).
func NewClient(name string, cfg ClientConfig, opts ...Option) (*Client, error) {
	var base *url.URL

	if cfg.BaseEndpoint != "" {
		parsed, err := url.Parse(cfg.BaseEndpoint)
		if err != nil {
			return nil, fmt.Errorf("armor: base_endpoint: %w", err)
		}

		if !parsed.IsAbs() {
			return nil, fmt.Errorf("armor: base_endpoint %q is not absolute", cfg.BaseEndpoint)
		}

		base = parsed
	}

	timeout, err := parseRequestTimeout(&cfg)
	if err != nil {
		return nil, fmt.Errorf("armor: %w", err)
	}

	hc := &http.Client{}

	if !cfg.DisableCookies {
		jar, jarErr := cookiejar.New(nil)
		if jarErr != nil {
			return nil, fmt.Errorf("armor: cookie jar: %w", jarErr)
		}

		hc.Jar = jar
	}

	policyOpts, err := BuildOptions(&cfg)
	if err != nil {
		return nil, fmt.Errorf("armor: %w", err)
	}

	allOpts := make([]Option, 0, len(policyOpts)+len(opts)+1)
	allOpts = append(allOpts, withTransportHandler(clientHandler(hc)))
	allOpts = append(allOpts, policyOpts...)
	// User opts come last so they can override config values.
	allOpts = append(allOpts, opts...)

	return &Client{
		name:     name,
		base:     base,
		timeout:  timeout,
		pipeline: NewPipeline(name, allOpts...),
	}, nil
}

// clientHandler adapts an http.Client (cookie jar) to the innermost
// Handler.
func clientHandler(hc *http.Client) Handler {
	return func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return hc.Do(req.WithContext(ctx)) //nolint:wrapcheck // transport errors surface as-is
	}
}

// Name returns the dependency name.
func (c *Client) Name() string { return c.name }

// Pipeline returns the underlying pipeline, e.g. for health inspection.
func (c *Client) Pipeline() *Pipeline { return c.pipeline }

// Do sends an already-built request through the pipeline. The configured
// request_timeout is applied as an overall deadline around the whole chain,
// retries and waits included. Callers must treat a 429 or an exhausted-retry
// outcome as a normal failure path.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	ctx, cancel := c.deadlineCtx(ctx)

	resp, err := c.pipeline.Do(ctx, req)
	if err != nil {
		cancel()

		return nil, err
	}

	// The deadline also covers reading the body; release it on Close.
	resp.Body = &cancelOnCloseBody{ReadCloser: resp.Body, cancel: cancel}

	return resp, nil
}

// deadlineCtx derives the overall request deadline from the configured
// request_timeout. A zero timeout leaves the caller's context untouched.
func (c *Client) deadlineCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.timeout)
}

// cancelOnCloseBody ties the request deadline's lifetime to the response
// body: cancelling before the caller has read the body would abort the read.
type cancelOnCloseBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnCloseBody) Close() error {
	b.cancel()

	return b.ReadCloser.Close()
}

// Get issues a GET to ref, resolved against the base endpoint.
func (c *Client) Get(ctx context.Context, ref string) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, ref, "", nil)
	if err != nil {
		return nil, err
	}

	return c.Do(ctx, req)
}

// Post issues a POST to ref, resolved against the base endpoint. Bodies
// built from bytes or strings readers can be replayed on retry; other body
// types get a single attempt.
func (c *Client) Post(ctx context.Context, ref, contentType string, body io.Reader) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodPost, ref, contentType, body)
	if err != nil {
		return nil, err
	}

	return c.Do(ctx, req)
}

// Put issues a PUT to ref, resolved against the base endpoint.
func (c *Client) Put(ctx context.Context, ref, contentType string, body io.Reader) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodPut, ref, contentType, body)
	if err != nil {
		return nil, err
	}

	return c.Do(ctx, req)
}

func (c *Client) newRequest(
	ctx context.Context,
	method, ref, contentType string,
	body io.Reader,
) (*http.Request, error) {
	target, err := c.resolve(ref)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("armor: build request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return req, nil
}

// resolve maps ref onto the base endpoint, or validates it as absolute when
// no base endpoint is configured.
func (c *Client) resolve(ref string) (string, error) {
	if c.base != nil {
		u, err := c.base.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("armor: resolve %q: %w", ref, err)
		}

		return u.String(), nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("armor: resolve %q: %w", ref, err)
	}

	if !u.IsAbs() {
		return "", fmt.Errorf("armor: %q is relative and no base_endpoint is configured", ref)
	}

	return u.String(), nil
}
