package helpdesk_test

import (
	"context"
	"errors"
	"testing"

	"helpdesk/internal/helpdesk"
	"helpdesk/internal/model"
	"helpdesk/internal/testutil"
)

func TestAuthService_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("first admin access requires an initial password", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)
		auth := helpdesk.NewAuthService(db, helpdesk.NewNopLogger())

		user, err := auth.Authenticate(ctx, "admin", "admin")
		if !errors.Is(err, helpdesk.ErrInitialPasswordRequired) {
			t.Fatalf("Authenticate() error = %v, want ErrInitialPasswordRequired", err)
		}
		if user == nil || user.Username != "admin" {
			t.Errorf("user = %+v, want admin", user)
		}

		if _, err := auth.Authenticate(ctx, "admin", "wrong"); !errors.Is(err, helpdesk.ErrInvalidCredentials) {
			t.Errorf("Authenticate(wrong) error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("password login after the initial password is set", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)
		auth := helpdesk.NewAuthService(db, helpdesk.NewNopLogger())
		admin := &model.Principal{ID: 1, Name: "admin", Role: model.RoleAdmin}

		if err := auth.SetInitialPassword(ctx, admin, "s3cret-pass"); err != nil {
			t.Fatalf("SetInitialPassword() error = %v", err)
		}

		user, err := auth.Authenticate(ctx, "admin", "s3cret-pass")
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if !user.IsAdmin() {
			t.Errorf("Role = %q, want admin", user.Role)
		}

		if _, err := auth.Authenticate(ctx, "admin", "admin"); !errors.Is(err, helpdesk.ErrInvalidCredentials) {
			t.Errorf("default password still accepted: %v", err)
		}
		if _, err := auth.Authenticate(ctx, "admin", "wrong-pass"); !errors.Is(err, helpdesk.ErrInvalidCredentials) {
			t.Errorf("wrong password: %v", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)
		auth := helpdesk.NewAuthService(db, helpdesk.NewNopLogger())

		if _, err := auth.Authenticate(ctx, "ghost", "whatever"); !errors.Is(err, helpdesk.ErrInvalidCredentials) {
			t.Errorf("error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("user without password cannot use the admin default", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)
		if _, err := db.CreateUser(ctx, "tecnico", model.RoleGuest); err != nil {
			t.Fatal(err)
		}
		auth := helpdesk.NewAuthService(db, helpdesk.NewNopLogger())

		if _, err := auth.Authenticate(ctx, "tecnico", "admin"); !errors.Is(err, helpdesk.ErrInvalidCredentials) {
			t.Errorf("error = %v, want ErrInvalidCredentials", err)
		}
	})
}

func TestAuthService_SetInitialPassword(t *testing.T) {
	ctx := context.Background()
	admin := &model.Principal{ID: 1, Name: "admin", Role: model.RoleAdmin}

	tests := []struct {
		name      string
		principal *model.Principal
		password  string
		wantErr   error
	}{
		{"no session", nil, "long-enough", helpdesk.ErrNotAuthorized},
		{"not the admin", &model.Principal{ID: 2, Name: "tecnico", Role: model.RoleAdmin}, "long-enough", helpdesk.ErrNotAuthorized},
		{"too short", admin, "short", helpdesk.ErrPasswordTooShort},
		{"ok", admin, "long-enough", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.NewTestDatabase(t)
			auth := helpdesk.NewAuthService(db, helpdesk.NewNopLogger())

			err := auth.SetInitialPassword(ctx, tt.principal, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SetInitialPassword() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("only once", func(t *testing.T) {
		db := testutil.NewTestDatabase(t)
		auth := helpdesk.NewAuthService(db, helpdesk.NewNopLogger())

		first, err := auth.FirstAccess(ctx)
		if err != nil || !first {
			t.Fatalf("FirstAccess() = %v, %v; want true", first, err)
		}
		if err := auth.SetInitialPassword(ctx, admin, "first-password"); err != nil {
			t.Fatal(err)
		}
		if err := auth.SetInitialPassword(ctx, admin, "second-password"); !errors.Is(err, helpdesk.ErrInitialPasswordAlreadySet) {
			t.Errorf("second SetInitialPassword() error = %v, want ErrInitialPasswordAlreadySet", err)
		}
		if first, _ := auth.FirstAccess(ctx); first {
			t.Error("FirstAccess() = true after the initial password was set")
		}
	})
}

func TestAuthService_SetPassword(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDatabase(t)
	if _, err := db.CreateUser(ctx, "tecnico", model.RoleGuest); err != nil {
		t.Fatal(err)
	}
	auth := helpdesk.NewAuthService(db, helpdesk.NewNopLogger())

	if err := auth.SetPassword(ctx, "tecnico", "tecnico-pass"); err != nil {
		t.Fatalf("SetPassword() error = %v", err)
	}
	if _, err := auth.Authenticate(ctx, "tecnico", "tecnico-pass"); err != nil {
		t.Errorf("Authenticate() after SetPassword: %v", err)
	}
	if err := auth.SetPassword(ctx, "ghost", "whatever-pass"); !errors.Is(err, helpdesk.ErrUserNotFound) {
		t.Errorf("SetPassword(ghost) error = %v, want ErrUserNotFound", err)
	}
	if err := auth.SetPassword(ctx, "tecnico", "short"); !errors.Is(err, helpdesk.ErrPasswordTooShort) {
		t.Errorf("SetPassword(short) error = %v, want ErrPasswordTooShort", err)
	}
}
