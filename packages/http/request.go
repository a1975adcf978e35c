package http

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/failure"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
)

type Request struct {
	Method         string
	URL            string
	Headers        map[string]string
	Cookies        map[string]string
	Body           []byte
	Timeout        time.Duration
	QueryParams    map[string]string
	AllowRedirects *bool
}

// BodyEncoder is a pre-encoded request body that knows its own content
// type, such as a multipart form.
type BodyEncoder interface {
	Bytes() []byte
	ContentType() string
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:      method,
		URL:         requestURL,
		Headers:     make(map[string]string),
		Cookies:     make(map[string]string),
		QueryParams: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

func (r *Request) SetBody(body []byte) *Request {
	r.Body = body
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

func (r *Request) SetQueryParam(key, value string) *Request {
	r.QueryParams[key] = value
	return r
}

func (r *Request) header(key string) string {
	return headerFold(r.Headers, key)
}

func (r *Request) BuildURL() string {
	if len(r.QueryParams) == 0 {
		return r.URL
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return r.URL
	}

	q := u.Query()
	for k, v := range r.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// JoinURL resolves a step URL against the test case's base_url. Absolute
// URLs are returned unchanged.
func JoinURL(baseURL, path string) (string, error) {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path, nil
	}
	if baseURL == "" {
		return "", failure.Params("relative URL %q requires base_url", path)
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/"), nil
}

// FromStep builds a request from a step's request payload whose templates
// have already been resolved.
func FromStep(step *testcase.Request, baseURL string) (*Request, error) {
	fullURL, err := JoinURL(baseURL, step.URL)
	if err != nil {
		return nil, err
	}

	r := NewRequest(strings.ToUpper(step.Method), fullURL)
	r.Timeout = step.Timeout
	r.AllowRedirects = step.AllowRedirects

	for k, v := range step.Params {
		r.SetQueryParam(k, stringify(v))
	}
	for k, v := range step.Headers {
		r.SetHeader(k, stringify(v))
	}
	for k, v := range step.Cookies {
		r.Cookies[k] = stringify(v)
	}

	if step.JSON != nil && step.Data != nil {
		return nil, failure.Params("request %s %s sets both json and data", r.Method, step.URL)
	}

	if step.JSON != nil {
		body, err := json.Marshal(step.JSON)
		if err != nil {
			return nil, fmt.Errorf("encoding json body: %w", err)
		}
		r.SetBody(body)
		if r.header("Content-Type") == "" {
			r.SetHeader("Content-Type", "application/json")
		}
	}

	switch data := step.Data.(type) {
	case nil:
	case BodyEncoder:
		r.SetBody(data.Bytes())
		r.SetHeader("Content-Type", data.ContentType())
	case string:
		r.SetBody([]byte(data))
	case []byte:
		r.SetBody(data)
	case map[string]any:
		form := url.Values{}
		for k, v := range data {
			form.Set(k, stringify(v))
		}
		r.SetBody([]byte(form.Encode()))
		if r.header("Content-Type") == "" {
			r.SetHeader("Content-Type", "application/x-www-form-urlencoded")
		}
	default:
		body, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encoding data body: %w", err)
		}
		r.SetBody(body)
	}

	return r, nil
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}
