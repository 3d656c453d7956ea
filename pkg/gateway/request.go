package gateway

import (
	"strings"

	"github.com/trialstack/reportgate/pkg/httputil"
)

// queryKind is a request kind accepted by the query endpoint.
type queryKind string

const (
	kindUsers   queryKind = "users"
	kindReports queryKind = "reports"
	kindColumns queryKind = "columns"
)

// query is the parsed, validated form of an inbound request. The request
// kinds carry different field sets and cardinality rules; they are resolved
// here once, before any collaborator is called, so a malformed request can
// never leak information through side effects.
type query struct {
	kind queryKind

	// users holds the normalized usernames for a "users" request.
	users []string

	// user is the single normalized username for "reports"/"columns".
	user string

	projectID int
	reportID  int
	rawData   bool
}

// fetchesReport reports whether the query asks for full report rows.
func (q *query) fetchesReport() bool {
	return q.kind == kindReports && q.reportID != 0
}

// parseQuery validates field presence and cardinality per request kind.
func parseQuery(values httputil.Values) (*query, *Error) {
	kind := queryKind(values.Get("request"))
	switch kind {
	case kindUsers, kindReports, kindColumns:
	default:
		return nil, errInvalidRequest()
	}

	q := &query{kind: kind}

	rawUser := strings.ToLower(strings.TrimSpace(values.Get("user")))
	if rawUser == "" {
		return nil, errMissingField("missing required user")
	}

	users := splitUsers(rawUser)
	if len(users) == 0 {
		return nil, errMissingField("missing required user")
	}

	if kind == kindUsers {
		q.users = users
	} else {
		if len(users) != 1 {
			return nil, errMissingField("exactly one user required")
		}
		q.user = users[0]
	}

	projectID, err := values.GetInt("project_id")
	if err != nil {
		return nil, errInvalidRequest()
	}
	reportID, err := values.GetInt("report_id")
	if err != nil {
		return nil, errInvalidRequest()
	}
	q.projectID = projectID
	q.reportID = reportID
	q.rawData = values.GetBool("raw_data")

	switch kind {
	case kindReports:
		if q.projectID == 0 {
			return nil, errMissingField("project_id required")
		}
	case kindColumns:
		if q.projectID == 0 {
			return nil, errMissingField("project_id required")
		}
		if q.reportID == 0 {
			return nil, errMissingField("report_id required")
		}
	}

	return q, nil
}

// splitUsers splits a comma-separated user list, dropping empties.
func splitUsers(raw string) []string {
	parts := strings.Split(raw, ",")
	users := make([]string, 0, len(parts))
	for _, part := range parts {
		if user := strings.TrimSpace(part); user != "" {
			users = append(users, user)
		}
	}
	return users
}
