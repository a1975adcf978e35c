package testcase

import "time"

type Kind string

const (
	KindRequest  Kind = "request"
	KindTestCase Kind = "testcase"
	KindSQL      Kind = "sql"
	KindRPC      Kind = "rpc"
)

// Payload is the variant part of a step. The set of implementations is
// closed: Request, Reference, SQLRequest and RPCRequest.
type Payload interface {
	Kind() Kind
	payload()
}

type Request struct {
	Method         string
	URL            string
	Params         map[string]any
	Headers        map[string]any
	Cookies        map[string]any
	JSON           any
	Data           any
	Upload         map[string]any
	Timeout        time.Duration
	AllowRedirects *bool
}

func (*Request) Kind() Kind { return KindRequest }
func (*Request) payload()   {}

// Reference runs another test case with the caller's session.
type Reference struct {
	Path     string
	TestCase *TestCase
}

func (*Reference) Kind() Kind { return KindTestCase }
func (*Reference) payload()   {}

type SQLMethod string

const (
	SQLFetchOne  SQLMethod = "FETCHONE"
	SQLFetchMany SQLMethod = "FETCHMANY"
	SQLFetchAll  SQLMethod = "FETCHALL"
	SQLInsert    SQLMethod = "INSERT"
	SQLUpdate    SQLMethod = "UPDATE"
	SQLDelete    SQLMethod = "DELETE"
)

// IsQuery reports whether the method returns rows.
func (m SQLMethod) IsQuery() bool {
	return m == SQLFetchOne || m == SQLFetchMany || m == SQLFetchAll
}

type SQLRequest struct {
	Method SQLMethod
	SQL    string
	Size   int
	DSN    string
}

func (*SQLRequest) Kind() Kind { return KindSQL }
func (*SQLRequest) payload()   {}

type RPCRequest struct {
	Target  string
	Method  string
	Params  any
	Timeout time.Duration
}

func (*RPCRequest) Kind() Kind { return KindRPC }
func (*RPCRequest) payload()   {}
