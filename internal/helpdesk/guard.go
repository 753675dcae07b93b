package helpdesk

import (
	"context"

	"helpdesk/internal/model"
)

// Reason explains why the guard rejected a request.
type Reason int

const (
	// ReasonNone accompanies accepted requests.
	ReasonNone Reason = iota
	// ReasonUserDeleted means the session's principal no longer exists.
	ReasonUserDeleted
	// ReasonStructureChanged means a critical relation is missing.
	ReasonStructureChanged
	// ReasonFingerprintMismatch means the store's shape differs from the baseline.
	ReasonFingerprintMismatch
)

func (r Reason) String() string {
	switch r {
	case ReasonUserDeleted:
		return "user_deleted"
	case ReasonStructureChanged:
		return "structure_changed"
	case ReasonFingerprintMismatch:
		return "fingerprint_mismatch"
	default:
		return "none"
	}
}

// Decision is the guard's verdict for one request.
type Decision struct {
	Accept bool
	Reason Reason
}

var accepted = Decision{Accept: true}

// IntegrityGuard invalidates sessions whose principal disappeared or whose
// store changed shape underneath them.
//
// Transient store errors fail open: the request is accepted and the baseline
// is left untouched.
type IntegrityGuard struct {
	fingerprinter *Fingerprinter
	baseline      BaselineStore
	logger        Logger
}

// NewIntegrityGuard creates a guard over the given fingerprinter and baseline.
func NewIntegrityGuard(fingerprinter *Fingerprinter, baseline BaselineStore, logger Logger) *IntegrityGuard {
	return &IntegrityGuard{
		fingerprinter: fingerprinter,
		baseline:      baseline,
		logger:        logger,
	}
}

// Check evaluates the request's principal. A nil principal is an anonymous
// request and always passes. On rejection the baseline has been cleared and
// the caller must invalidate the session.
func (g *IntegrityGuard) Check(ctx context.Context, p *model.Principal) Decision {
	if p == nil {
		return accepted
	}

	a := g.fingerprinter.Assess(ctx, p.ID)
	switch a.Kind {
	case AssessmentTransientError:
		g.logger.Error("integrity check failed, accepting request", "user", p.Name, "error", a.Err)
		return accepted
	case AssessmentUserDeleted:
		g.logger.Warn("session principal was deleted, invalidating session", "user", p.Name, "user_id", p.ID)
		g.baseline.Clear()
		return Decision{Reason: ReasonUserDeleted}
	case AssessmentStructureChanged:
		g.logger.Warn("critical relation missing, invalidating session", "user", p.Name)
		g.baseline.Clear()
		return Decision{Reason: ReasonStructureChanged}
	}

	prior, ok := g.baseline.Get()
	if !ok {
		g.baseline.Set(a.Fingerprint)
		return accepted
	}
	if prior != a.Fingerprint {
		g.logger.Warn("database structure fingerprint changed, invalidating session", "user", p.Name)
		g.baseline.Clear()
		return Decision{Reason: ReasonFingerprintMismatch}
	}
	return accepted
}
