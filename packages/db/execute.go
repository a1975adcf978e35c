package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitrunner/packages/capture"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/failure"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
)

// Result is the outcome of one sql_request step.
type Result struct {
	Method   testcase.SQLMethod
	SQL      string
	DSN      string
	Rows     []map[string]any
	Exec     *ExecResult
	Duration time.Duration
}

// Execute runs req against the pooled client for its DSN. FETCHONE returns
// at most one row and FETCHMANY at most req.Size rows.
func (p *Pool) Execute(ctx context.Context, req *testcase.SQLRequest) (*Result, error) {
	if req.DSN == "" {
		return nil, failure.Params("sql_request %q: no dsn configured", req.SQL)
	}
	if strings.TrimSpace(req.SQL) == "" {
		return nil, failure.Params("sql_request: empty sql")
	}

	client, err := p.Get(ctx, req.DSN)
	if err != nil {
		return nil, err
	}

	result := &Result{Method: req.Method, SQL: req.SQL, DSN: req.DSN}
	start := time.Now()
	if req.Method.IsQuery() {
		limit := 0
		switch req.Method {
		case testcase.SQLFetchOne:
			limit = 1
		case testcase.SQLFetchMany:
			if req.Size <= 0 {
				return nil, failure.Params("sql_request %s: size must be positive", req.Method)
			}
			limit = req.Size
		}
		rows, err := client.Query(ctx, req.SQL, limit)
		if err != nil {
			return nil, err
		}
		result.Rows = rows.Rows
	} else {
		exec, err := client.Exec(ctx, req.SQL)
		if err != nil {
			return nil, err
		}
		result.Exec = exec
	}
	result.Duration = time.Since(start)
	return result, nil
}

// Document exposes rows, row (the first row), row_count, rows_affected and
// last_insert_id to extractors and validators.
func (r *Result) Document() capture.Document {
	rows := make([]any, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = row
	}
	doc := capture.Document{
		"rows":       rows,
		"row_count":  len(r.Rows),
		"elapsed_ms": float64(r.Duration.Microseconds()) / 1000,
	}
	if len(r.Rows) > 0 {
		doc["row"] = r.Rows[0]
	}
	if r.Exec != nil {
		doc["rows_affected"] = r.Exec.RowsAffected
		doc["last_insert_id"] = r.Exec.LastInsertID
	}
	return doc
}

// Record renders the statement and its outcome for the step's session data.
func (r *Result) Record() (testcase.ReqResp, testcase.Stat) {
	var body any = r.Rows
	if r.Exec != nil {
		body = map[string]any{
			"rows_affected":  r.Exec.RowsAffected,
			"last_insert_id": r.Exec.LastInsertID,
		}
	}
	record := testcase.ReqResp{
		Request: testcase.RequestRecord{
			Method: string(r.Method),
			URL:    redact(r.DSN),
			Body:   r.SQL,
		},
		Response: testcase.ResponseRecord{
			ContentType: "application/sql-rows",
			Body:        body,
		},
	}
	return record, testcase.Stat{
		ContentSize:    int64(len(r.Rows)),
		ResponseTimeMs: float64(r.Duration.Microseconds()) / 1000,
	}
}

// redact drops the password from a mysql:// connection string.
func redact(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return dsn
	}
	user, _, _ := strings.Cut(rest[:at], ":")
	return fmt.Sprintf("%s://%s:***@%s", scheme, user, rest[at+1:])
}
