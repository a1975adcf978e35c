package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/failure"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
	"github.com/abdul-hamid-achik/hitrunner/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handle func(call map[string]any) map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		data, _ := io.ReadAll(r.Body)
		var call map[string]any
		_ = json.Unmarshal(data, &call)
		reply := handle(call)
		reply["jsonrpc"] = "2.0"
		reply["id"] = call["id"]
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCall_Result(t *testing.T) {
	server := newServer(t, func(call map[string]any) map[string]any {
		params := call["params"].(map[string]any)
		return map[string]any{"result": map[string]any{
			"method": call["method"],
			"sum":    params["a"].(float64) + params["b"].(float64),
		}}
	})

	client := NewClient(http.NewSession())
	reply, err := client.Call(context.Background(), &testcase.RPCRequest{
		Target: server.URL,
		Method: "math.add",
		Params: map[string]any{"a": 2, "b": 3},
	})
	require.NoError(t, err)
	assert.Nil(t, reply.Error)

	doc := reply.Document()
	sum, ok := doc.Field("result.sum")
	require.True(t, ok)
	assert.Equal(t, 5.0, sum)

	method, _ := doc.Field("result.method")
	assert.Equal(t, "math.add", method)

	_, ok = doc.Field("error.code")
	assert.False(t, ok)

	record, stat := reply.Record()
	assert.Equal(t, "math.add", record.Request.Method)
	assert.Equal(t, server.URL, record.Request.URL)
	assert.Greater(t, stat.ContentSize, int64(0))
}

func TestCall_ErrorReply(t *testing.T) {
	server := newServer(t, func(map[string]any) map[string]any {
		return map[string]any{"error": map[string]any{"code": -32601, "message": "Method not found"}}
	})

	client := NewClient(http.NewSession())
	reply, err := client.Call(context.Background(), &testcase.RPCRequest{Target: server.URL, Method: "nope"})
	require.NoError(t, err)
	require.NotNil(t, reply.Error)

	doc := reply.Document()
	code, _ := doc.Field("error.code")
	assert.Equal(t, -32601.0, code)
	message, _ := doc.Field("error.message")
	assert.Equal(t, "Method not found", message)
}

func TestCall_IDsIncrease(t *testing.T) {
	server := newServer(t, func(map[string]any) map[string]any {
		return map[string]any{"result": true}
	})

	client := NewClient(http.NewSession())
	req := &testcase.RPCRequest{Target: server.URL, Method: "ping"}
	first, err := client.Call(context.Background(), req)
	require.NoError(t, err)
	second, err := client.Call(context.Background(), req)
	require.NoError(t, err)
	assert.Less(t, first.ID, second.ID)
	assert.Equal(t, true, second.Result)
}

func TestCall_Errors(t *testing.T) {
	client := NewClient(http.NewSession())

	_, err := client.Call(context.Background(), &testcase.RPCRequest{Method: "ping"})
	assert.True(t, errors.Is(err, failure.ErrParams))

	_, err = client.Call(context.Background(), &testcase.RPCRequest{Target: "http://localhost"})
	assert.True(t, errors.Is(err, failure.ErrParams))

	notRPC := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		_, _ = w.Write([]byte("<html>nope</html>"))
	}))
	defer notRPC.Close()

	_, err = client.Call(context.Background(), &testcase.RPCRequest{Target: notRPC.URL, Method: "ping"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid reply")
}
