// Package rpc is the JSON-RPC 2.0 transport for rpc_request steps. Calls
// are posted over the run's HTTP session so they share its cookies, rate
// limit and proxy settings.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/abdul-hamid-achik/hitrunner/packages/capture"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/failure"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
	"github.com/abdul-hamid-achik/hitrunner/packages/http"
)

// message is the JSON-RPC 2.0 envelope for both calls and replies.
type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method,omitempty"`
	Params  any             `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object. A reply carrying one is still a
// successful call; validators decide whether it is expected.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type Client struct {
	session *http.Session
	nextID  atomic.Int64
}

func NewClient(session *http.Session) *Client {
	return &Client{session: session}
}

// Reply is the outcome of one call.
type Reply struct {
	Target   string
	Method   string
	Params   any
	ID       int64
	Result   any
	Error    *Error
	Duration time.Duration
	size     int
}

// Call posts req to its target and decodes the reply. Transport failures
// and replies that are not JSON-RPC are errors.
func (c *Client) Call(ctx context.Context, req *testcase.RPCRequest) (*Reply, error) {
	if req.Target == "" {
		return nil, failure.Params("rpc_request %q: no target configured", req.Method)
	}
	if req.Method == "" {
		return nil, failure.Params("rpc_request: empty method")
	}

	call := message{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  req.Method,
		Params:  req.Params,
	}
	body, err := json.Marshal(call)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: marshal params: %w", req.Method, err)
	}

	httpReq := http.NewRequest("POST", req.Target).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetBody(body)
	if req.Timeout > 0 {
		httpReq.SetTimeout(req.Timeout)
	}

	resp, err := c.session.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", req.Method, err)
	}

	var reply message
	if err := json.Unmarshal(resp.Body, &reply); err != nil {
		return nil, fmt.Errorf("rpc %s: status %d: invalid reply: %w", req.Method, resp.StatusCode, err)
	}
	if reply.JSONRPC != "2.0" {
		return nil, fmt.Errorf("rpc %s: reply is not JSON-RPC 2.0", req.Method)
	}
	if reply.ID != call.ID {
		return nil, fmt.Errorf("rpc %s: reply id %d does not match call id %d", req.Method, reply.ID, call.ID)
	}

	out := &Reply{
		Target:   req.Target,
		Method:   req.Method,
		Params:   req.Params,
		ID:       call.ID,
		Error:    reply.Error,
		Duration: resp.Duration,
		size:     len(resp.Body),
	}
	if len(reply.Result) > 0 {
		if err := json.Unmarshal(reply.Result, &out.Result); err != nil {
			return nil, fmt.Errorf("rpc %s: decode result: %w", req.Method, err)
		}
	}
	return out, nil
}

// Document exposes result, error.code, error.message and elapsed_ms.
func (r *Reply) Document() capture.Document {
	doc := capture.Document{
		"id":         r.ID,
		"result":     r.Result,
		"elapsed_ms": float64(r.Duration.Microseconds()) / 1000,
	}
	if r.Error != nil {
		doc["error"] = map[string]any{
			"code":    r.Error.Code,
			"message": r.Error.Message,
			"data":    r.Error.Data,
		}
	}
	return doc
}

// Record renders the call and its reply for the step's session data.
func (r *Reply) Record() (testcase.ReqResp, testcase.Stat) {
	var body any = map[string]any{"result": r.Result}
	if r.Error != nil {
		body = map[string]any{"error": r.Error}
	}
	record := testcase.ReqResp{
		Request: testcase.RequestRecord{
			Method: r.Method,
			URL:    r.Target,
			Body:   r.Params,
		},
		Response: testcase.ResponseRecord{
			ContentType: "application/json",
			Body:        body,
		},
	}
	return record, testcase.Stat{
		ContentSize:    int64(r.size),
		ResponseTimeMs: float64(r.Duration.Microseconds()) / 1000,
	}
}
