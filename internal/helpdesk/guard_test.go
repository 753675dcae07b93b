package helpdesk_test

import (
	"context"
	"errors"
	"testing"

	"helpdesk/internal/helpdesk"
	"helpdesk/internal/model"
	"helpdesk/internal/testutil"
)

func newGuard(store *testutil.StubStore) (*helpdesk.IntegrityGuard, *helpdesk.MemoryBaseline) {
	baseline := helpdesk.NewMemoryBaseline()
	guard := helpdesk.NewIntegrityGuard(helpdesk.NewFingerprinter(store, store), baseline, helpdesk.NewNopLogger())
	return guard, baseline
}

func TestIntegrityGuard_Check(t *testing.T) {
	ctx := context.Background()
	admin := &model.Principal{ID: 1, Name: "admin", Role: model.RoleAdmin}

	t.Run("anonymous request is accepted without touching the baseline", func(t *testing.T) {
		store := testutil.NewStubStore()
		store.UserErr = errors.New("must not be called")
		guard, baseline := newGuard(store)

		if d := guard.Check(ctx, nil); !d.Accept {
			t.Errorf("Check(nil) = %+v, want accept", d)
		}
		if _, ok := baseline.Get(); ok {
			t.Error("baseline set by anonymous request")
		}
	})

	t.Run("first check establishes the baseline", func(t *testing.T) {
		store := testutil.NewStubStore()
		store.AddUser(1, "admin", model.RoleAdmin)
		guard, baseline := newGuard(store)

		if d := guard.Check(ctx, admin); !d.Accept {
			t.Fatalf("Check() = %+v, want accept", d)
		}
		fp, ok := baseline.Get()
		if !ok || fp == "" {
			t.Fatal("baseline not established")
		}

		if d := guard.Check(ctx, admin); !d.Accept {
			t.Errorf("second Check() = %+v, want accept", d)
		}
		if again, _ := baseline.Get(); again != fp {
			t.Error("baseline changed on a matching check")
		}
	})

	t.Run("fingerprint mismatch rejects and clears", func(t *testing.T) {
		store := testutil.NewStubStore()
		store.AddUser(1, "admin", model.RoleAdmin)
		guard, baseline := newGuard(store)
		guard.Check(ctx, admin)

		store.SetColumns("chamados", []model.Column{{Name: "id", Type: "INTEGER"}, {Name: "protocolo", Type: "TEXT"}})

		d := guard.Check(ctx, admin)
		if d.Accept || d.Reason != helpdesk.ReasonFingerprintMismatch {
			t.Fatalf("Check() = %+v, want reject fingerprint_mismatch", d)
		}
		if _, ok := baseline.Get(); ok {
			t.Error("baseline not cleared")
		}

		// The next request re-establishes the baseline from the new shape.
		if d := guard.Check(ctx, admin); !d.Accept {
			t.Errorf("Check() after re-login = %+v, want accept", d)
		}
	})

	t.Run("deleted user rejects and clears", func(t *testing.T) {
		store := testutil.NewStubStore()
		store.AddUser(1, "admin", model.RoleAdmin)
		store.AddUser(2, "tecnico", model.RoleGuest)
		guard, baseline := newGuard(store)
		guard.Check(ctx, admin)

		store.DeleteUser(2)
		d := guard.Check(ctx, &model.Principal{ID: 2, Name: "tecnico"})
		if d.Accept || d.Reason != helpdesk.ReasonUserDeleted {
			t.Fatalf("Check() = %+v, want reject user_deleted", d)
		}
		if _, ok := baseline.Get(); ok {
			t.Error("baseline not cleared")
		}
	})

	t.Run("missing critical relation rejects even without a baseline", func(t *testing.T) {
		store := testutil.NewStubStore()
		store.AddUser(1, "admin", model.RoleAdmin)
		store.DropRelation("agendamentos")
		guard, baseline := newGuard(store)

		d := guard.Check(ctx, admin)
		if d.Accept || d.Reason != helpdesk.ReasonStructureChanged {
			t.Fatalf("Check() = %+v, want reject structure_changed", d)
		}
		if _, ok := baseline.Get(); ok {
			t.Error("baseline set on rejection")
		}
	})

	t.Run("transient error fails open and keeps the baseline", func(t *testing.T) {
		store := testutil.NewStubStore()
		store.AddUser(1, "admin", model.RoleAdmin)
		guard, baseline := newGuard(store)
		guard.Check(ctx, admin)
		before, _ := baseline.Get()

		store.RelationErr = errors.New("disk I/O error")
		if d := guard.Check(ctx, admin); !d.Accept {
			t.Fatalf("Check() = %+v, want accept on transient error", d)
		}
		after, ok := baseline.Get()
		if !ok || after != before {
			t.Errorf("baseline changed on transient error: %q -> %q (set=%v)", before, after, ok)
		}
	})

	t.Run("transient error with unset baseline leaves it unset", func(t *testing.T) {
		store := testutil.NewStubStore()
		store.UserErr = errors.New("database is locked")
		guard, baseline := newGuard(store)

		if d := guard.Check(ctx, admin); !d.Accept {
			t.Fatalf("Check() = %+v, want accept", d)
		}
		if _, ok := baseline.Get(); ok {
			t.Error("baseline set from a failed assessment")
		}
	})
}

func TestReason_String(t *testing.T) {
	tests := []struct {
		reason helpdesk.Reason
		want   string
	}{
		{helpdesk.ReasonNone, "none"},
		{helpdesk.ReasonUserDeleted, "user_deleted"},
		{helpdesk.ReasonStructureChanged, "structure_changed"},
		{helpdesk.ReasonFingerprintMismatch, "fingerprint_mismatch"},
	}
	for _, tt := range tests {
		if got := tt.reason.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.reason, got, tt.want)
		}
	}
}
