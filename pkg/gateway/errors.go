package gateway

import "net/http"

// ErrorKind identifies which gate failed. Each kind maps to one HTTP status
// and one generic message; internal detail never reaches the response body.
type ErrorKind string

const (
	KindInvalidToken       ErrorKind = "invalid_token"
	KindInvalidSourceIP    ErrorKind = "invalid_source_ip"
	KindInvalidRequest     ErrorKind = "invalid_request"
	KindMissingField       ErrorKind = "missing_field"
	KindNotAuthorized      ErrorKind = "not_authorized"
	KindReportNotInProject ErrorKind = "report_not_in_project"
	KindReportUnavailable  ErrorKind = "report_unavailable"
)

// Error is a terminal gate failure. Every gate failure ends the request; no
// partial responses.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func errInvalidToken() *Error {
	return &Error{Kind: KindInvalidToken, Status: http.StatusUnauthorized, Message: "invalid API token"}
}

func errInvalidSourceIP() *Error {
	return &Error{Kind: KindInvalidSourceIP, Status: http.StatusNotFound, Message: "invalid source IP"}
}

func errInvalidRequest() *Error {
	return &Error{Kind: KindInvalidRequest, Status: http.StatusNotFound, Message: "invalid request"}
}

func errMissingField(message string) *Error {
	return &Error{Kind: KindMissingField, Status: http.StatusNotFound, Message: message}
}

func errNotAuthorized() *Error {
	return &Error{Kind: KindNotAuthorized, Status: http.StatusForbidden, Message: "not authorized"}
}

func errReportNotInProject() *Error {
	return &Error{Kind: KindReportNotInProject, Status: http.StatusNotFound, Message: "report not found in project"}
}

func errReportUnavailable() *Error {
	return &Error{Kind: KindReportUnavailable, Status: http.StatusBadGateway, Message: "report unavailable"}
}
