package helpdesk

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"helpdesk/internal/model"
)

// CriticalRelations are the relations the application cannot function without,
// in fingerprint order.
var CriticalRelations = []string{"usuarios", "clientes", "chamados", "agendamentos"}

// AssessmentKind tags the outcome of a structural assessment.
type AssessmentKind int

const (
	// AssessmentOK carries an ordinary fingerprint.
	AssessmentOK AssessmentKind = iota
	// AssessmentUserDeleted means the bound principal no longer exists.
	AssessmentUserDeleted
	// AssessmentStructureChanged means a critical relation is missing.
	AssessmentStructureChanged
	// AssessmentTransientError means the store could not be read.
	AssessmentTransientError
)

func (k AssessmentKind) String() string {
	switch k {
	case AssessmentOK:
		return "ok"
	case AssessmentUserDeleted:
		return "user_deleted"
	case AssessmentStructureChanged:
		return "structure_changed"
	case AssessmentTransientError:
		return "transient_error"
	default:
		return fmt.Sprintf("AssessmentKind(%d)", int(k))
	}
}

// Assessment is the result of fingerprinting the store for a principal.
// Fingerprint is set only for AssessmentOK; Err only for AssessmentTransientError.
type Assessment struct {
	Kind        AssessmentKind
	Fingerprint string
	Err         error
}

// Fingerprinter computes structural fingerprints of the live store.
type Fingerprinter struct {
	principals PrincipalStore
	schema     SchemaInspector
	relations  []string
}

// NewFingerprinter creates a Fingerprinter over CriticalRelations.
func NewFingerprinter(principals PrincipalStore, schema SchemaInspector) *Fingerprinter {
	return &Fingerprinter{
		principals: principals,
		schema:     schema,
		relations:  CriticalRelations,
	}
}

// Assess checks, in order, that the principal exists, that every critical
// relation exists, and then fingerprints the critical relations' shape.
func (f *Fingerprinter) Assess(ctx context.Context, principalID int64) Assessment {
	user, err := f.principals.FindUserByID(ctx, principalID)
	if err != nil {
		return Assessment{Kind: AssessmentTransientError, Err: fmt.Errorf("looking up principal: %w", err)}
	}
	if user == nil {
		return Assessment{Kind: AssessmentUserDeleted}
	}

	names, err := f.schema.ListRelations(ctx)
	if err != nil {
		return Assessment{Kind: AssessmentTransientError, Err: fmt.Errorf("listing relations: %w", err)}
	}
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}
	for _, rel := range f.relations {
		if !present[rel] {
			return Assessment{Kind: AssessmentStructureChanged}
		}
	}

	shape := make([][]model.Column, len(f.relations))
	for i, rel := range f.relations {
		cols, err := f.schema.RelationColumns(ctx, rel)
		if err != nil {
			return Assessment{Kind: AssessmentTransientError, Err: fmt.Errorf("reading columns of %s: %w", rel, err)}
		}
		shape[i] = cols
	}

	return Assessment{Kind: AssessmentOK, Fingerprint: StructuralFingerprint(f.relations, shape)}
}

// StructuralFingerprint digests relation/attribute shape. shape[i] holds the
// ordered columns of relations[i]. Row content never enters the digest.
func StructuralFingerprint(relations []string, shape [][]model.Column) string {
	var b strings.Builder
	for i, rel := range relations {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(rel)
		b.WriteByte(':')
		for j, col := range shape[i] {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(col.Name)
			b.WriteByte(':')
			b.WriteString(col.Type)
		}
	}
	sum := blake3.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
