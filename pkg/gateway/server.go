// Package gateway wires admission, rights resolution, the catalog, and the
// context relay into the gateway's HTTP surface: a single POST query
// endpoint for integration callers and an internal relay endpoint for
// secondary fetch hops.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/trialstack/reportgate/pkg/admission"
	"github.com/trialstack/reportgate/pkg/audit"
	"github.com/trialstack/reportgate/pkg/catalog"
	"github.com/trialstack/reportgate/pkg/export"
	"github.com/trialstack/reportgate/pkg/httputil"
	"github.com/trialstack/reportgate/pkg/observability"
	"github.com/trialstack/reportgate/pkg/rights"
)

// Deps are the collaborators a Server needs.
type Deps struct {
	Admission *admission.Controller
	Issuer    *admission.CapabilityIssuer
	Rights    *rights.Resolver
	Catalog   *catalog.Service
	Exporter  export.Exporter
	Relay     *Relay
	Audit     audit.Logger
	Logger    *observability.Logger
	Metrics   *observability.Metrics
}

// Server is the gateway's HTTP API.
type Server struct {
	router    *mux.Router
	admission *admission.Controller
	issuer    *admission.CapabilityIssuer
	rights    *rights.Resolver
	catalog   *catalog.Service
	exporter  export.Exporter
	relay     *Relay
	audit     audit.Logger
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewServer creates the gateway server and sets up its routes.
func NewServer(deps Deps) *Server {
	if deps.Audit == nil {
		deps.Audit = audit.NoopLogger{}
	}

	s := &Server{
		router:    mux.NewRouter(),
		admission: deps.Admission,
		issuer:    deps.Issuer,
		rights:    deps.Rights,
		catalog:   deps.Catalog,
		exporter:  deps.Exporter,
		relay:     deps.Relay,
		audit:     deps.Audit,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/query", s.handleQuery).Methods("POST")
	s.router.HandleFunc("/api/relay/report", s.handleRelayReport).Methods("POST")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleQuery is the integration entry point. Gates run strictly in order:
// token, source IP, request shape, rights, scoping, membership; the first
// failure is terminal.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()
	ctx := observability.WithRequestID(r.Context(), requestID)
	ctx = observability.WithLogger(ctx, s.logger)
	sourceIP := httputil.RemoteAddr(r)

	values, err := httputil.ParseBody(r)
	if err != nil {
		s.respondError(ctx, w, errInvalidRequest(), &audit.Event{
			RequestID: requestID, Kind: "unknown", SourceIP: sourceIP,
		})
		return
	}

	kind := values.Get("request")
	event := &audit.Event{
		RequestID: requestID,
		Kind:      kind,
		Username:  values.Get("user"),
		SourceIP:  sourceIP,
	}

	decision, err := s.admission.Admit(ctx, admission.Request{
		Token:      values.Get("token"),
		SourceAddr: sourceIP,
	})
	if err != nil {
		s.logger.WithError(err).Error("admission check failed")
		s.respondError(ctx, w, errServiceUnavailable(), event)
		return
	}
	if !decision.Granted {
		s.respondError(ctx, w, admissionError(decision), event)
		return
	}

	q, qerr := parseQuery(values)
	if qerr != nil {
		s.respondError(ctx, w, qerr, event)
		return
	}
	event.ProjectID = q.projectID
	event.ReportID = q.reportID

	var (
		payload interface{}
		raw     []byte
		herr    *Error
	)

	switch {
	case q.kind == kindUsers:
		payload, herr = s.queryUsers(ctx, q)
	case q.kind == kindReports && q.reportID == 0:
		payload, herr = s.queryReportList(ctx, q)
	case q.fetchesReport():
		raw, herr = s.queryReportRows(ctx, q)
	default:
		payload, herr = s.queryColumns(ctx, q)
	}

	if herr != nil {
		s.respondError(ctx, w, herr, event)
		s.observeQuery(string(q.kind), "denied", start)
		return
	}

	event.Outcome = audit.OutcomeGranted
	s.recordAudit(ctx, event)
	s.observeQuery(string(q.kind), "granted", start)

	if raw != nil {
		httputil.WriteRawJSON(w, http.StatusOK, raw)
		return
	}
	httputil.WriteSuccess(w, payload)
}

// userProjects is one entry of the "users" response.
type userProjects struct {
	User     string          `json:"user"`
	Projects []projectRights `json:"projects"`
}

type projectRights struct {
	ProjectID int           `json:"project_id"`
	Title     string        `json:"project_title"`
	Rights    rightsSummary `json:"rights"`
}

type rightsSummary struct {
	ExportLevel string `json:"data_export_tool"`
	Reports     bool   `json:"reports"`
}

// queryUsers intersects the enabled projects with each user's export grants.
func (s *Server) queryUsers(ctx context.Context, q *query) (interface{}, *Error) {
	projects, err := s.catalog.EnabledProjects(ctx)
	if err != nil {
		s.logger.WithError(err).Error("failed to list enabled projects")
		return nil, errServiceUnavailable()
	}

	results := make([]userProjects, 0, len(q.users))
	for _, user := range q.users {
		entry := userProjects{User: user, Projects: []projectRights{}}
		for _, project := range projects {
			priv, err := s.rights.Privileges(ctx, project.ID, user)
			if err != nil {
				s.logger.WithError(err).Error("failed to resolve privileges")
				return nil, errServiceUnavailable()
			}
			if priv == nil || priv.ExportLevel == rights.LevelNone || !priv.ReportsAccess {
				continue
			}
			entry.Projects = append(entry.Projects, projectRights{
				ProjectID: project.ID,
				Title:     project.Title,
				Rights: rightsSummary{
					ExportLevel: priv.ExportLevel.String(),
					Reports:     priv.ReportsAccess,
				},
			})
		}
		results = append(results, entry)
	}
	return results, nil
}

type reportListResponse struct {
	ProjectID int              `json:"project_id"`
	Reports   []catalog.Report `json:"reports"`
}

func (s *Server) queryReportList(ctx context.Context, q *query) (interface{}, *Error) {
	if herr := s.requireExportRights(ctx, q.projectID, q.user); herr != nil {
		return nil, herr
	}

	reports, err := s.catalog.ExportableReports(ctx, q.projectID)
	if err != nil {
		s.logger.WithError(err).Error("failed to list exportable reports")
		return nil, errServiceUnavailable()
	}
	return reportListResponse{ProjectID: q.projectID, Reports: reports}, nil
}

func (s *Server) queryReportRows(ctx context.Context, q *query) ([]byte, *Error) {
	if herr := s.requireReportAccess(ctx, q); herr != nil {
		return nil, herr
	}

	tier, err := s.rights.Tier(ctx, q.projectID, q.user)
	if err != nil {
		s.logger.WithError(err).Error("failed to resolve de-identification tier")
		return nil, errServiceUnavailable()
	}

	return s.relay.FetchRows(ctx, q.projectID, q.reportID, q.user, export.FetchOptions{
		RawData: q.rawData,
		Tier:    tier,
	})
}

type columnsResponse struct {
	ProjectID int             `json:"project_id"`
	ReportID  int             `json:"report_id"`
	Columns   []export.Column `json:"columns"`
}

func (s *Server) queryColumns(ctx context.Context, q *query) (interface{}, *Error) {
	if herr := s.requireReportAccess(ctx, q); herr != nil {
		return nil, herr
	}

	columns, err := s.exporter.FetchColumns(ctx, q.projectID, q.reportID)
	if err != nil {
		s.logger.WithError(err).Error("failed to fetch column metadata")
		return nil, errReportUnavailable()
	}
	return columnsResponse{ProjectID: q.projectID, ReportID: q.reportID, Columns: columns}, nil
}

// requireExportRights denies unless the user can export in the project.
func (s *Server) requireExportRights(ctx context.Context, projectID int, user string) *Error {
	allowed, err := s.rights.CanExport(ctx, projectID, user)
	if err != nil {
		s.logger.WithError(err).Error("rights check failed")
		return errServiceUnavailable()
	}
	if !allowed {
		return errNotAuthorized()
	}
	return nil
}

// requireReportAccess runs the three gates for a specific report: per-user
// rights, report-to-project membership, then the project scoping policy.
// Membership runs before scoping so a report claimed under the wrong
// project is rejected without consulting that project's policy.
func (s *Server) requireReportAccess(ctx context.Context, q *query) *Error {
	if herr := s.requireExportRights(ctx, q.projectID, q.user); herr != nil {
		return herr
	}

	inProject, err := s.catalog.ReportInProject(ctx, q.projectID, q.reportID)
	if err != nil {
		s.logger.WithError(err).Error("report membership check failed")
		return errServiceUnavailable()
	}
	if !inProject {
		return errReportNotInProject()
	}

	policy, err := s.catalog.Policy(ctx, q.projectID)
	if err != nil {
		s.logger.WithError(err).Error("scoping policy read failed")
		return errServiceUnavailable()
	}
	if !policy.Allows(q.reportID) {
		return errNotAuthorized()
	}
	return nil
}

// handleRelayReport serves the secondary hop of a context re-entry fetch.
// The capability vouches for the source-IP gate of the primary hop; the
// shared secret is re-validated here as a first-class check.
func (s *Server) handleRelayReport(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	ctx := observability.WithRequestID(r.Context(), requestID)
	ctx = observability.WithLogger(ctx, s.logger)
	sourceIP := httputil.RemoteAddr(r)

	event := &audit.Event{RequestID: requestID, Kind: "relay", SourceIP: sourceIP}

	values, err := httputil.ParseBody(r)
	if err != nil {
		s.respondError(ctx, w, errInvalidRequest(), event)
		return
	}

	grant, err := s.issuer.Verify(ctx, values.Get("capability"))
	if err != nil {
		s.logger.WithError(err).Warn("relay capability rejected")
		s.respondError(ctx, w, errNotAuthorized(), event)
		return
	}
	event.Username = grant.User
	event.ProjectID = grant.ProjectID
	event.ReportID = grant.ReportID

	decision, err := s.admission.Admit(ctx, admission.Request{
		Token:      values.Get("token"),
		SourceAddr: sourceIP,
		TrustedHop: true,
	})
	if err != nil {
		s.logger.WithError(err).Error("admission check failed")
		s.respondError(ctx, w, errServiceUnavailable(), event)
		return
	}
	if !decision.Granted {
		s.respondError(ctx, w, admissionError(decision), event)
		return
	}

	projectID, _ := values.GetInt("project_id")
	reportID, _ := values.GetInt("report_id")
	if projectID != grant.ProjectID || reportID != grant.ReportID {
		s.respondError(ctx, w, errNotAuthorized(), event)
		return
	}

	if !s.exporter.InContext(grant.ProjectID) {
		// This instance cannot serve the fetch either; failing here
		// beats bouncing the request around.
		s.respondError(ctx, w, errReportUnavailable(), event)
		return
	}

	start := time.Now()
	rows, err := s.exporter.FetchRows(ctx, grant.ProjectID, grant.ReportID, export.FetchOptions{
		RawData: grant.RawData,
		Tier:    grant.Tier,
	})
	if err != nil {
		s.logger.WithError(err).WithField("report_id", grant.ReportID).Error("relay fetch failed")
		s.respondError(ctx, w, errReportUnavailable(), event)
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"report_id":   grant.ReportID,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("relay report retrieval complete")

	event.Outcome = audit.OutcomeGranted
	s.recordAudit(ctx, event)
	httputil.WriteRawJSON(w, http.StatusOK, rows)
}

// respondError writes the generic error envelope, records the denial, and
// logs the detail the caller never sees.
func (s *Server) respondError(ctx context.Context, w http.ResponseWriter, herr *Error, event *audit.Event) {
	event.Outcome = audit.OutcomeDenied
	event.Reason = string(herr.Kind)
	s.recordAudit(ctx, event)

	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"kind":       event.Kind,
		"user":       event.Username,
		"project_id": event.ProjectID,
		"report_id":  event.ReportID,
		"source_ip":  event.SourceIP,
		"reason":     string(herr.Kind),
	}).Warn("request denied")

	httputil.WriteErrorMessage(w, herr.Status, herr.Message)
}

func (s *Server) recordAudit(ctx context.Context, event *audit.Event) {
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.WithError(err).Error("failed to record audit event")
	}
}

func (s *Server) observeQuery(kind, outcome string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveQuery(kind, outcome, time.Since(start))
	}
}

// admissionError maps an admission denial to the response taxonomy.
func admissionError(d admission.Decision) *Error {
	if d.Reason == admission.ReasonInvalidSourceIP {
		return errInvalidSourceIP()
	}
	return errInvalidToken()
}

// errServiceUnavailable covers collaborator failures; they surface as a
// fetch failure rather than crashing the handler or leaking detail.
func errServiceUnavailable() *Error {
	return &Error{Kind: KindReportUnavailable, Status: http.StatusInternalServerError, Message: "service unavailable"}
}
