package testcase

import "time"

type RequestRecord struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Cookies map[string]string `json:"cookies,omitempty"`
	Body    any               `json:"body,omitempty"`
}

type ResponseRecord struct {
	StatusCode  int               `json:"status_code"`
	Headers     map[string]string `json:"headers,omitempty"`
	Cookies     map[string]string `json:"cookies,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	Body        any               `json:"body,omitempty"`
}

// ReqResp pairs what was sent with what came back. SQL steps record the
// statement as the request body and the rows as the response body; RPC steps
// record the call and the reply.
type ReqResp struct {
	Request  RequestRecord  `json:"request"`
	Response ResponseRecord `json:"response"`
}

type Stat struct {
	ContentSize    int64   `json:"content_size"`
	ResponseTimeMs float64 `json:"response_time_ms"`
}

type ValidatorResult struct {
	Comparator string `json:"comparator"`
	Check      string `json:"check"`
	CheckValue any    `json:"check_value"`
	Expect     any    `json:"expect"`
	Message    string `json:"message,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Passed     bool   `json:"passed"`
}

// StepData is either *SessionData or NestedResults.
type StepData interface {
	stepData()
}

type SessionData struct {
	Success    bool              `json:"success"`
	ReqResps   []ReqResp         `json:"req_resps"`
	Stat       Stat              `json:"stat"`
	Validators []ValidatorResult `json:"validators,omitempty"`
}

func (*SessionData) stepData() {}

// NestedResults holds the step results of a referenced test case.
type NestedResults []*StepResult

func (NestedResults) stepData() {}

type StepResult struct {
	Name        string        `json:"name"`
	Kind        Kind          `json:"step_type"`
	Success     bool          `json:"success"`
	Elapsed     time.Duration `json:"elapsed"`
	ContentSize int64         `json:"content_size"`
	Attempts    int           `json:"attempts"`
	ExportVars  Variables     `json:"export_vars,omitempty"`
	Data        StepData      `json:"data,omitempty"`
}

// Session returns the transport data of a leaf step, or nil for a
// referenced test case.
func (r *StepResult) Session() *SessionData {
	sd, _ := r.Data.(*SessionData)
	return sd
}

// Nested returns the sub-run results of a referenced test case step.
func (r *StepResult) Nested() NestedResults {
	n, _ := r.Data.(NestedResults)
	return n
}

type Time struct {
	StartAt  time.Time     `json:"start_at"`
	Duration time.Duration `json:"duration"`
}

type InOut struct {
	ConfigVars Variables `json:"config_vars"`
	ExportVars Variables `json:"export_vars"`
}

type Summary struct {
	Name        string        `json:"name"`
	Success     bool          `json:"success"`
	CaseID      string        `json:"case_id"`
	Time        Time          `json:"time"`
	InOut       InOut         `json:"in_out"`
	Log         string        `json:"log,omitempty"`
	StepResults []*StepResult `json:"step_results"`
}
