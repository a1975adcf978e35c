package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/failure"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(url string) *Request {
	return NewRequest("GET", url)
}

func TestSession_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/test", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message": "hello"}`))
	}))
	defer server.Close()

	session := NewSession()
	resp, err := session.Do(context.Background(), get(server.URL+"/test"))

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header("Content-Type"))
	assert.Contains(t, resp.BodyString(), "hello")

	msg, ok := resp.Document().Field("body.message")
	assert.True(t, ok)
	assert.Equal(t, "hello", msg)
}

func TestSession_PostJSONFromStep(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"name": "test", "tags": ["a"]}`, string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 123}`))
	}))
	defer server.Close()

	req, err := FromStep(&testcase.Request{
		Method:  "post",
		URL:     "/items",
		Params:  map[string]any{"page": 2},
		Headers: map[string]any{"Authorization": "Bearer abc"},
		JSON:    map[string]any{"name": "test", "tags": []any{"a"}},
	}, server.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/items", req.URL)

	resp, err := NewSession().Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)

	rr, stat := resp.Record()
	assert.Equal(t, "POST", rr.Request.Method)
	assert.Equal(t, map[string]any{"name": "test", "tags": []any{"a"}}, rr.Request.Body)
	assert.Equal(t, map[string]any{"id": 123.0}, rr.Response.Body)
	assert.Equal(t, int64(len(`{"id": 123}`)), stat.ContentSize)
}

func TestFromStep_FormData(t *testing.T) {
	req, err := FromStep(&testcase.Request{
		Method: "POST",
		URL:    "https://example.com/login",
		Data:   map[string]any{"user": "alice", "remember": true},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "application/x-www-form-urlencoded", req.Headers["Content-Type"])
	assert.Equal(t, "remember=true&user=alice", string(req.Body))
}

type fakeEncoder struct{}

func (fakeEncoder) Bytes() []byte       { return []byte("--x--") }
func (fakeEncoder) ContentType() string { return "multipart/form-data; boundary=x" }

func TestFromStep_Encoder(t *testing.T) {
	req, err := FromStep(&testcase.Request{Method: "POST", URL: "https://example.com/upload", Data: fakeEncoder{}}, "")
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data; boundary=x", req.Headers["Content-Type"])
	assert.Equal(t, "--x--", string(req.Body))
}

func TestFromStep_Errors(t *testing.T) {
	_, err := FromStep(&testcase.Request{Method: "GET", URL: "/relative"}, "")
	assert.ErrorIs(t, err, failure.ErrParams)

	_, err = FromStep(&testcase.Request{Method: "POST", URL: "https://example.com", JSON: 1, Data: "x"}, "")
	assert.ErrorIs(t, err, failure.ErrParams)
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"https://api.example.com", "/users", "https://api.example.com/users"},
		{"https://api.example.com/", "users", "https://api.example.com/users"},
		{"https://api.example.com/v1/", "/users", "https://api.example.com/v1/users"},
		{"https://api.example.com", "https://other.example.com/x", "https://other.example.com/x"},
	}
	for _, tt := range tests {
		got, err := JoinURL(tt.base, tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestSession_WithTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	session := NewSession(WithTimeout(50 * time.Millisecond))
	_, err := session.Do(context.Background(), get(server.URL))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context deadline exceeded")
}

func TestSession_WithDefaultHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "custom-agent", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	session := NewSession(WithDefaultHeaders(map[string]string{
		"Authorization": "test-token",
		"User-Agent":    "custom-agent",
	}))
	resp, err := session.Do(context.Background(), get(server.URL))

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestSession_CookiesPersist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "SESSION", Value: "s1", Path: "/"})
			return
		}
		c, err := r.Cookie("SESSION")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(c.Value))
	}))
	defer server.Close()

	session := NewSession()
	resp, err := session.Do(context.Background(), get(server.URL+"/login"))
	require.NoError(t, err)
	assert.Equal(t, "s1", resp.Cookies["SESSION"])

	resp, err = session.Do(context.Background(), get(server.URL+"/me"))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "s1", resp.BodyString())
	assert.Equal(t, "s1", session.Cookies(server.URL)["SESSION"])

	resp, err = NewSession().Do(context.Background(), get(server.URL+"/me"))
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestSession_FollowRedirects(t *testing.T) {
	redirectCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`final`))
			return
		}
		redirectCount++
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	session := NewSession(WithFollowRedirects(true))
	resp, err := session.Do(context.Background(), get(server.URL+"/redirect"))

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "final", resp.BodyString())
	assert.Equal(t, 1, redirectCount)

	noFollow := false
	req := get(server.URL + "/redirect")
	req.AllowRedirects = &noFollow
	resp, err = session.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 302, resp.StatusCode)
}

func TestSession_NoFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	session := NewSession(WithFollowRedirects(false))
	resp, err := session.Do(context.Background(), get(server.URL+"/redirect"))

	require.NoError(t, err)
	assert.Equal(t, 302, resp.StatusCode)
}

func TestSession_MaxRedirects(t *testing.T) {
	redirectCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		redirectCount++
		// Infinite redirect loop
		http.Redirect(w, r, "/redirect", http.StatusFound)
	}))
	defer server.Close()

	session := NewSession(WithMaxRedirects(3))
	resp, err := session.Do(context.Background(), get(server.URL+"/redirect"))

	require.NoError(t, err)
	// Should stop after max redirects and return the redirect response
	assert.Equal(t, 302, resp.StatusCode)
	assert.LessOrEqual(t, redirectCount, 4)
}

func TestSession_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	session := NewSession(WithRateLimit(20))
	start := time.Now()
	for i := 0; i < 25; i++ {
		_, err := session.Do(context.Background(), get(server.URL))
		require.NoError(t, err)
	}
	// 20 requests fit in the initial burst, the other 5 wait ~50ms each
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid http URL",
			url:     "http://example.com/path",
			wantErr: false,
		},
		{
			name:    "valid https URL",
			url:     "https://example.com/path",
			wantErr: false,
		},
		{
			name:    "invalid scheme",
			url:     "ftp://example.com",
			wantErr: true,
			errMsg:  "unsupported URL scheme",
		},
		{
			name:    "missing scheme",
			url:     "example.com/path",
			wantErr: true,
			errMsg:  "unsupported URL scheme",
		},
		{
			name:    "file scheme",
			url:     "file:///etc/passwd",
			wantErr: true,
			errMsg:  "unsupported URL scheme",
		},
		{
			name:    "missing host",
			url:     "http:///path",
			wantErr: true,
			errMsg:  "URL must have a host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResponse_IsSuccess(t *testing.T) {
	tests := []struct {
		statusCode int
		expected   bool
	}{
		{200, true},
		{201, true},
		{204, true},
		{299, true},
		{300, false},
		{400, false},
		{404, false},
		{500, false},
	}

	for _, tt := range tests {
		resp := &Response{StatusCode: tt.statusCode}
		assert.Equal(t, tt.expected, resp.IsSuccess(), "StatusCode: %d", tt.statusCode)
	}
}

func TestResponse_IsJSON(t *testing.T) {
	tests := []struct {
		contentType string
		expected    bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"text/html", false},
		{"text/plain", false},
		{"", false},
	}

	for _, tt := range tests {
		resp := &Response{Headers: map[string]string{"Content-Type": tt.contentType}}
		assert.Equal(t, tt.expected, resp.IsJSON(), "Content-Type: %s", tt.contentType)
	}
}
