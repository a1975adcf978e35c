package builtin

import (
	"fmt"
	"net/http"
	"time"
)

// funcWaitFor polls a URL until it returns the expected status code or the
// timeout expires. Usage: ${wait_for($url, 200, 30000, 500)}, with the
// timeout and poll interval in milliseconds. It is meant for setup hooks.
func funcWaitFor(args []any, kwargs map[string]any) (any, error) {
	url := argString(args, 0, "")
	if v, ok := kwargs["url"]; ok {
		url = fmt.Sprint(v)
	}
	if url == "" {
		return nil, fmt.Errorf("wait_for(): url is required")
	}
	expectedStatus := argInt(args, 1, 200)
	timeout := time.Duration(argInt(args, 2, 30000)) * time.Millisecond
	interval := time.Duration(argInt(args, 3, 500)) * time.Millisecond
	if v, ok := kwargs["status"]; ok {
		expectedStatus = argInt([]any{v}, 0, expectedStatus)
	}
	if v, ok := kwargs["timeout"]; ok {
		timeout = time.Duration(argInt([]any{v}, 0, 30000)) * time.Millisecond
	}
	if v, ok := kwargs["interval"]; ok {
		interval = time.Duration(argInt([]any{v}, 0, 500)) * time.Millisecond
	}

	deadline := time.Now().Add(timeout)
	client := &http.Client{
		Timeout: 5 * time.Second, // Per-request timeout
	}

	var lastErr error
	var lastStatus int

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err != nil {
			lastErr = err
			time.Sleep(interval)
			continue
		}
		lastStatus = resp.StatusCode
		resp.Body.Close()

		if resp.StatusCode == expectedStatus {
			return true, nil
		}

		time.Sleep(interval)
	}

	if lastErr != nil {
		return nil, fmt.Errorf("service %s not ready after %v: %v", url, timeout, lastErr)
	}
	return nil, fmt.Errorf("service %s not ready after %v: got status %d, expected %d",
		url, timeout, lastStatus, expectedStatus)
}
