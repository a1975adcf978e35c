package http

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitrunner/packages/capture"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
)

// Sent is the request as it went out, after session defaults were applied.
type Sent struct {
	Method  string
	URL     string
	Headers map[string]string
	Cookies map[string]string
	Body    []byte
}

type Response struct {
	StatusCode int
	Status     string
	Headers    map[string]string
	Cookies    map[string]string
	Body       []byte
	Duration   time.Duration
	URL        string
	Request    Sent
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

func (r *Response) BodyJSON() (any, error) {
	var result any
	if err := json.Unmarshal(r.Body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// BodyValue returns the decoded body when it is JSON, or the body text.
func (r *Response) BodyValue() any {
	if r.IsJSON() || json.Valid(r.Body) {
		if v, err := r.BodyJSON(); err == nil {
			return v
		}
	}
	return r.BodyString()
}

func (r *Response) Header(key string) string {
	return headerFold(r.Headers, key)
}

func headerFold(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	ct := r.ContentType()
	return strings.Contains(ct, "application/json")
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) DurationMs() float64 {
	return float64(r.Duration.Microseconds()) / 1000
}

// Document exposes the response to extraction and validation:
// status_code, headers, cookies, body, elapsed_ms, content_size and url.
func (r *Response) Document() capture.Document {
	return capture.Document{
		"status_code":  r.StatusCode,
		"headers":      r.Headers,
		"cookies":      r.Cookies,
		"body":         r.BodyValue(),
		"elapsed_ms":   r.DurationMs(),
		"content_size": len(r.Body),
		"url":          r.URL,
	}
}

// Record converts the exchange into session data for the step result.
func (r *Response) Record() (testcase.ReqResp, testcase.Stat) {
	var reqBody any
	if strings.Contains(headerFold(r.Request.Headers, "Content-Type"), "multipart/form-data") {
		reqBody = "upload file stream (OMITTED)"
	} else if len(r.Request.Body) > 0 {
		var decoded any
		if err := json.Unmarshal(r.Request.Body, &decoded); err == nil {
			reqBody = decoded
		} else {
			reqBody = string(r.Request.Body)
		}
	}

	rr := testcase.ReqResp{
		Request: testcase.RequestRecord{
			Method:  r.Request.Method,
			URL:     r.Request.URL,
			Headers: r.Request.Headers,
			Cookies: r.Request.Cookies,
			Body:    reqBody,
		},
		Response: testcase.ResponseRecord{
			StatusCode:  r.StatusCode,
			Headers:     r.Headers,
			Cookies:     r.Cookies,
			ContentType: r.ContentType(),
			Body:        r.BodyValue(),
		},
	}
	stat := testcase.Stat{
		ContentSize:    int64(len(r.Body)),
		ResponseTimeMs: r.DurationMs(),
	}
	return rr, stat
}
