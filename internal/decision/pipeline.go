// Package decision runs the per-page ALLOW/BLOCK pipeline.
//
// Checks run cheapest first and the first match wins: system policy, the
// user's allow-list, the user's block-list, then the AI judge. Every verdict
// except an infrastructure allow produces exactly one audit write.
package decision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nikhilbhutani/pagegate/internal/domainname"
	"github.com/nikhilbhutani/pagegate/internal/logging"
	"github.com/nikhilbhutani/pagegate/internal/models"
	"github.com/nikhilbhutani/pagegate/internal/policy"
)

var (
	// ErrMissingCredentials means the request lacked a URL or an API key.
	ErrMissingCredentials = errors.New("url and api key are required")
	// ErrInvalidKey means the API key did not resolve to a rule record.
	ErrInvalidKey = errors.New("invalid api key")
	// ErrInternal means the pipeline failed after the key was resolved. The
	// decision was recorded as BLOCK.
	ErrInternal = errors.New("internal decision error")
)

// RuleSource resolves an API key to a rule snapshot, or nil.
type RuleSource interface {
	Fetch(ctx context.Context, apiKey string) *models.RuleData
}

// Judge decides pages no static rule covers.
type Judge interface {
	Judge(ctx context.Context, page models.PageDescriptor, rule *models.RuleData) (models.Decision, error)
}

// SystemPolicy holds the non-overridable allow rules.
type SystemPolicy interface {
	Evaluate(t policy.Target) (policy.Match, bool)
}

// Recorder persists audit entries without ever failing the caller.
type Recorder interface {
	Record(ctx context.Context, entry models.AuditEntry)
}

// Result is a verdict plus the context it was reached in.
type Result struct {
	Decision models.Decision `json:"decision"`
	Reason   models.Reason   `json:"reason"`
	Domain   string          `json:"domain,omitempty"`
	Title    string          `json:"title,omitempty"`
}

type Pipeline struct {
	rules    RuleSource
	system   SystemPolicy
	judge    Judge
	recorder Recorder
	logger   logging.Logger
}

func NewPipeline(rules RuleSource, system SystemPolicy, judge Judge, recorder Recorder, logger logging.Logger) *Pipeline {
	return &Pipeline{
		rules:    rules,
		system:   system,
		judge:    judge,
		recorder: recorder,
		logger:   logging.OrDefault(logger),
	}
}

// Decide returns the verdict for page on behalf of the key's owner. On
// ErrInternal the returned Result still carries the recorded BLOCK.
func (p *Pipeline) Decide(ctx context.Context, page models.PageDescriptor, apiKey string) (Result, error) {
	page.URL = strings.TrimSpace(page.URL)
	apiKey = strings.TrimSpace(apiKey)
	if page.URL == "" || apiKey == "" {
		return Result{}, ErrMissingCredentials
	}

	rule := p.rules.Fetch(ctx, apiKey)
	if rule == nil {
		return Result{}, ErrInvalidKey
	}

	return p.evaluate(ctx, page, rule)
}

func (p *Pipeline) evaluate(ctx context.Context, page models.PageDescriptor, rule *models.RuleData) (res Result, err error) {
	target := policy.Target{Page: page}
	var recorded bool

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		cause := fmt.Errorf("panic: %v", r)
		if !recorded {
			res, err = p.fail(ctx, page, rule, target.Domain, cause, &recorded)
			return
		}
		// The audit row is already written; block without a second one.
		p.logger.Error(map[string]any{"error": cause, "user_id": rule.UserID, "domain": target.Domain}, "decision pipeline failed after audit, blocking")
		res = Result{Decision: models.DecisionBlock, Reason: models.ReasonServerError, Domain: target.Domain, Title: page.Title}
		err = fmt.Errorf("%w: %v", ErrInternal, cause)
	}()

	if u, ok := domainname.Parse(page.URL); ok {
		target.URL = u
		target.Host = u.Hostname()
		target.Domain = domainname.Reduce(target.Host)
	} else {
		p.logger.Debug(map[string]any{"user_id": rule.UserID}, "url has no parsable host, skipping domain rules")
	}

	if m, ok := p.system.Evaluate(target); ok {
		return p.finish(ctx, &recorded, page, rule, target.Domain, m.Decision, m.Reason, m.Title), nil
	}

	if listed(target, rule.AllowList) {
		return p.finish(ctx, &recorded, page, rule, target.Domain, models.DecisionAllow, models.ReasonAllowList, page.Title), nil
	}
	if listed(target, rule.BlockList) {
		return p.finish(ctx, &recorded, page, rule, target.Domain, models.DecisionBlock, models.ReasonBlockList, page.Title), nil
	}

	verdict, err := p.judge.Judge(ctx, page, rule)
	if err != nil {
		return p.fail(ctx, page, rule, target.Domain, err, &recorded)
	}
	return p.finish(ctx, &recorded, page, rule, target.Domain, verdict, models.ReasonAIDecision, page.Title), nil
}

// finish writes the audit entry and sets *recorded once it has.
func (p *Pipeline) finish(ctx context.Context, recorded *bool, page models.PageDescriptor, rule *models.RuleData, domain string, d models.Decision, reason models.Reason, title string) Result {
	p.recorder.Record(ctx, models.AuditEntry{
		UserID:    rule.UserID,
		URL:       page.URL,
		Domain:    domain,
		Decision:  d,
		Reason:    reason,
		PageTitle: title,
	})
	*recorded = true
	p.logger.Debug(map[string]any{
		"user_id":  rule.UserID,
		"domain":   domain,
		"decision": d,
		"reason":   reason,
	}, "page decided")
	return Result{Decision: d, Reason: reason, Domain: domain, Title: title}
}

func (p *Pipeline) fail(ctx context.Context, page models.PageDescriptor, rule *models.RuleData, domain string, cause error, recorded *bool) (Result, error) {
	p.logger.Error(map[string]any{"error": cause, "user_id": rule.UserID, "domain": domain}, "decision pipeline failed, blocking")
	res := p.finish(ctx, recorded, page, rule, domain, models.DecisionBlock, models.ReasonServerError, page.Title)
	return res, fmt.Errorf("%w: %v", ErrInternal, cause)
}

// listed matches the registrable domain and the full host, so list entries
// naming a specific subdomain still apply.
func listed(t policy.Target, list []string) bool {
	if t.Domain == "" {
		return false
	}
	return domainname.MatchesAny(t.Domain, list) || domainname.MatchesAny(t.Host, list)
}

