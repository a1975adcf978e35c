package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	neturl "net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 120 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
)

// Session carries cookies and pooled connections across every request of a
// test case run, including the runs of test cases it references. A Session
// is not safe for concurrent runs.
type Session struct {
	httpClient     *http.Client
	limiter        *rate.Limiter
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	validateSSL    bool
	proxyURL       string
	rateLimit      float64
	defaultHeaders map[string]string
}

type SessionOption func(*Session)

type redirectKey struct{}

func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
		defaultHeaders: make(map[string]string),
	}

	for _, opt := range opts {
		opt(s)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	// Configure TLS verification
	if !s.validateSSL {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	// Configure proxy if specified
	if s.proxyURL != "" {
		proxyURL, err := neturl.Parse(s.proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		follow := s.followRedirect
		if override, ok := req.Context().Value(redirectKey{}).(bool); ok {
			follow = override
		}
		if !follow {
			return http.ErrUseLastResponse
		}
		if len(via) >= s.maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	jar, _ := cookiejar.New(nil) // only fails for a non-nil options value

	s.httpClient = &http.Client{
		Transport:     transport,
		Jar:           jar,
		CheckRedirect: redirectPolicy,
	}

	if s.rateLimit > 0 {
		burst := int(s.rateLimit)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(s.rateLimit), burst)
	}

	return s
}

func WithTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.timeout = d
	}
}

func WithFollowRedirects(follow bool) SessionOption {
	return func(s *Session) {
		s.followRedirect = follow
	}
}

func WithMaxRedirects(max int) SessionOption {
	return func(s *Session) {
		s.maxRedirects = max
	}
}

func WithDefaultHeader(key, value string) SessionOption {
	return func(s *Session) {
		s.defaultHeaders[key] = value
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) SessionOption {
	return func(s *Session) {
		for k, v := range headers {
			s.defaultHeaders[k] = v
		}
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) SessionOption {
	return func(s *Session) {
		s.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) SessionOption {
	return func(s *Session) {
		s.proxyURL = proxyURL
	}
}

// WithRateLimit caps the session at rps requests per second. Zero disables
// the limit.
func WithRateLimit(rps float64) SessionOption {
	return func(s *Session) {
		s.rateLimit = rps
	}
}

// Cookies returns the cookies the session would send to rawURL.
func (s *Session) Cookies(rawURL string) map[string]string {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return nil
	}
	cookies := make(map[string]string)
	for _, c := range s.httpClient.Jar.Cookies(u) {
		cookies[c.Name] = c.Value
	}
	return cookies
}

// Do sends req and reads the whole response. Non-2xx statuses are not
// errors; only failures to get a response are.
func (s *Session) Do(ctx context.Context, req *Request) (*Response, error) {
	timeout := s.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if req.AllowRedirects != nil {
		ctx = context.WithValue(ctx, redirectKey{}, *req.AllowRedirects)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	return s.doRequest(ctx, req)
}

func (s *Session) doRequest(ctx context.Context, req *Request) (*Response, error) {
	fullURL := req.BuildURL()
	if err := ValidateURL(fullURL); err != nil {
		return nil, err
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, err
	}

	for k, v := range s.defaultHeaders {
		httpReq.Header.Set(k, v)
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	for name, value := range req.Cookies {
		httpReq.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	start := time.Now()
	httpResp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	duration := time.Since(start)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string)
	for k := range httpResp.Header {
		headers[k] = httpResp.Header.Get(k)
	}

	cookies := make(map[string]string)
	for _, c := range httpResp.Cookies() {
		cookies[c.Name] = c.Value
	}

	sentHeaders := make(map[string]string)
	for k := range httpReq.Header {
		sentHeaders[k] = httpReq.Header.Get(k)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    headers,
		Cookies:    cookies,
		Body:       respBody,
		Duration:   duration,
		URL:        httpResp.Request.URL.String(),
		Request: Sent{
			Method:  req.Method,
			URL:     fullURL,
			Headers: sentHeaders,
			Cookies: req.Cookies,
			Body:    req.Body,
		},
	}, nil
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	// Check for valid scheme
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", u.Scheme)
	}

	// Check for valid host
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}
