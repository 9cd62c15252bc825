package bridge

import (
	"encoding/json"

	"github.com/roach88/hubmapy/internal/errs"
)

// ProtocolVersion is the wire protocol spoken by this client.
const ProtocolVersion = 1

// Method names.
const (
	MethodHello    = "hello"
	MethodLoad     = "load"
	MethodReason   = "reason"
	MethodQuery    = "query"
	MethodShutdown = "shutdown"
)

// Request is one client-to-engine message.
type Request struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// Response is one engine-to-client message.
type Response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *WireError      `json:"error,omitempty"`
}

// WireError is an engine-reported failure.
type WireError struct {
	// Code is one of LOAD, REASONING, QUERY, IO or CONNECTION.
	Code string `json:"code"`

	// Message is the engine's diagnostic, passed through verbatim.
	Message string `json:"message"`
}

// HelloParams opens the handshake.
type HelloParams struct {
	Client   string `json:"client"`
	Protocol int    `json:"protocol"`
}

// HelloResult describes the engine.
type HelloResult struct {
	Engine   string `json:"engine"`
	Version  string `json:"version"`
	Protocol int    `json:"protocol"`
}

// LoadParams names the ontology to load.
type LoadParams struct {
	Source string `json:"source"`
}

// QueryParams submits one query.
type QueryParams struct {
	Query       string `json:"query"`
	Destination string `json:"destination"`
	Format      string `json:"format"`
}

// QueryResult acknowledges a written results file.
type QueryResult struct {
	Rows int `json:"rows"`
}

// methodCodes maps each method to the category used when the engine
// reports an error code this client does not recognise.
var methodCodes = map[string]errs.Code{
	MethodHello:    errs.CodeConnection,
	MethodLoad:     errs.CodeLoad,
	MethodReason:   errs.CodeReasoning,
	MethodQuery:    errs.CodeQuery,
	MethodShutdown: errs.CodeConnection,
}

// toError converts a wire error into the shared taxonomy.
func (w *WireError) toError(method string) error {
	code := errs.Code(w.Code)
	switch code {
	case errs.CodeLoad, errs.CodeReasoning, errs.CodeQuery, errs.CodeIO, errs.CodeConnection, errs.CodeNotFound:
	default:
		code = methodCodes[method]
	}
	return errs.New(code, "bridge."+method, w.Message)
}
