// Package admission implements the gateway's first gate: shared-secret
// validation and source-IP allow-list checks. Every path through this
// package fails closed.
package admission

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/trialstack/reportgate/pkg/ipfilter"
	"github.com/trialstack/reportgate/pkg/notify"
	"github.com/trialstack/reportgate/pkg/observability"
	"github.com/trialstack/reportgate/pkg/settings"
)

// DenyReason identifies why admission was refused.
type DenyReason string

const (
	ReasonInvalidToken    DenyReason = "invalid_token"
	ReasonInvalidSourceIP DenyReason = "invalid_source_ip"
)

// Decision is the admission outcome for one request. Decisions are computed
// fresh per request and never cached.
type Decision struct {
	Granted bool
	Reason  DenyReason
}

func granted() Decision {
	return Decision{Granted: true}
}

func denied(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// Request carries the admission inputs for one inbound call.
type Request struct {
	// Token is the shared secret presented by the caller.
	Token string
	// SourceAddr is the caller's network address, before normalization.
	SourceAddr string
	// TrustedHop marks a self-issued secondary call whose relay capability
	// has already been verified. It skips only the source-IP check; the
	// token check always runs.
	TrustedHop bool
}

// Controller validates admission requests against the configured secret and
// allow-list. Settings are read from the store on every call so rotation
// takes effect immediately.
type Controller struct {
	settings settings.Store
	notifier notify.Notifier
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewController creates an admission controller.
func NewController(store settings.Store, notifier notify.Notifier, logger *observability.Logger, metrics *observability.Metrics) *Controller {
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	return &Controller{
		settings: store,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
	}
}

// Admit validates the shared secret and, unless the request is a verified
// trusted hop, the source address. An IP denial triggers a best-effort alert
// before the denial is returned.
func (c *Controller) Admit(ctx context.Context, req Request) (Decision, error) {
	secret, err := c.settings.SystemSetting(ctx, settings.KeyAPIToken)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read API token setting: %w", err)
	}

	// An unconfigured secret admits nobody.
	if secret == "" || req.Token == "" ||
		subtle.ConstantTimeCompare([]byte(req.Token), []byte(secret)) != 1 {
		c.observe(denied(ReasonInvalidToken))
		return denied(ReasonInvalidToken), nil
	}

	if !req.TrustedHop {
		ok, err := c.sourceAllowed(ctx, req.SourceAddr)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			c.alertOnDeniedIP(ctx, req.SourceAddr)
			c.observe(denied(ReasonInvalidSourceIP))
			return denied(ReasonInvalidSourceIP), nil
		}
	}

	c.observe(granted())
	return granted(), nil
}

// sourceAllowed applies the configured allow-list. An empty list means no IP
// restriction is enforced.
func (c *Controller) sourceAllowed(ctx context.Context, addr string) (bool, error) {
	exprs, err := c.settings.SystemSettingList(ctx, settings.KeyIPAllowList)
	if err != nil {
		return false, fmt.Errorf("failed to read IP allow-list: %w", err)
	}

	list, parseErrs := ipfilter.ParseList(exprs)
	for _, perr := range parseErrs {
		c.logger.WithError(perr).Warn("skipping malformed IP allow-list entry")
	}

	if len(list) == 0 && len(parseErrs) == 0 {
		return true, nil
	}
	// If every configured entry was malformed the list is effectively
	// empty, but treating that as "no restriction" would turn a typo into
	// an open gate.
	if len(list) == 0 {
		return false, nil
	}

	return list.Match(ipfilter.NormalizeAddr(addr)), nil
}

// alertOnDeniedIP notifies the configured address about a request from
// outside the allow-list. Failure to send never changes the decision.
func (c *Controller) alertOnDeniedIP(ctx context.Context, addr string) {
	to, err := c.settings.SystemSetting(ctx, settings.KeyAlertEmail)
	if err != nil || to == "" {
		if err != nil {
			c.logger.WithError(err).Warn("could not read alert address")
		}
		return
	}

	subject := "Report gateway: request from unauthorized source IP"
	body := fmt.Sprintf("A request with a valid API token was received from %s, which is outside the configured allow-list.", addr)
	if err := c.notifier.SendAlert(ctx, to, subject, body); err != nil {
		c.logger.WithError(err).WithField("source_ip", addr).Warn("failed to send source IP alert")
		if c.metrics != nil {
			c.metrics.AlertsFailedTotal.Inc()
		}
		return
	}
	if c.metrics != nil {
		c.metrics.AlertsSentTotal.Inc()
	}
}

func (c *Controller) observe(d Decision) {
	if c.metrics == nil {
		return
	}
	if d.Granted {
		c.metrics.AdmissionDecisionsTotal.WithLabelValues("granted", "").Inc()
	} else {
		c.metrics.AdmissionDecisionsTotal.WithLabelValues("denied", string(d.Reason)).Inc()
	}
}
