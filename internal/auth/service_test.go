package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/store"
	"tally/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	svc := NewService(st, st.Tables().Categories, Config{
		Secret:     []byte("test-secret"),
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
		Seed: []core.Category{
			{Name: "Groceries", Type: core.Expense},
			{Name: "Salary", Type: core.Income},
		},
	}, log.Discard())
	return svc, st
}

func TestSignUpSeedsCategoriesAndNotifies(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	var changes [][2]string
	svc.Subscribe(func(_ context.Context, oldID, newID string) {
		changes = append(changes, [2]string{oldID, newID})
	})

	token, u, err := svc.SignUp(ctx, "  Ada@Example.com ", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if u.Email != "ada@example.com" {
		t.Fatalf("email should be normalized, got %q", u.Email)
	}
	if token == "" {
		t.Fatalf("expected a token")
	}
	cats, _ := st.Tables().Categories.Select(ctx, u.ID)
	if len(cats) != 2 {
		t.Fatalf("expected 2 seeded categories, got %d", len(cats))
	}
	if len(changes) != 1 || changes[0] != [2]string{"", u.ID} {
		t.Fatalf("unexpected identity changes %v", changes)
	}
}

func TestSignUpValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	tests := []struct {
		name, email, password string
		want                  error
	}{
		{"bad email", "nope", "secret1", ErrInvalidEmail},
		{"short password", "a@b.co", "123", ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.SignUp(ctx, tt.email, tt.password)
			if !errors.Is(err, tt.want) || !errors.Is(err, core.ErrValidation) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	if _, _, err := svc.SignUp(ctx, "a@b.co", "secret1"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.SignUp(ctx, "A@B.co", "secret2"); !errors.Is(err, store.ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
}

func TestSignInChecksPassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, u, _ := svc.SignUp(ctx, "a@b.co", "secret1")

	if _, _, err := svc.SignIn(ctx, "a@b.co", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, _, err := svc.SignIn(ctx, "ghost@b.co", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email should look like bad credentials, got %v", err)
	}

	token, got, err := svc.SignIn(ctx, "A@B.CO", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != u.ID {
		t.Fatalf("signed in as %s, want %s", got.ID, u.ID)
	}
	claims, err := svc.ParseToken(token)
	if err != nil || claims.Subject != u.ID {
		t.Fatalf("token does not carry the user: %v %+v", err, claims)
	}
}

func TestTokenExpiryAndRevocation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	token, u, _ := svc.SignUp(ctx, "a@b.co", "secret1")

	var signedOut string
	svc.Subscribe(func(_ context.Context, oldID, newID string) {
		if newID == "" {
			signedOut = oldID
		}
	})
	if err := svc.SignOut(ctx, token); err != nil {
		t.Fatal(err)
	}
	if signedOut != u.ID {
		t.Fatalf("sign-out listener got %q", signedOut)
	}
	if _, err := svc.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("revoked token accepted: %v", err)
	}

	fresh, _ := svc.IssueToken(u)
	now = now.Add(2 * time.Hour)
	if _, err := svc.ParseToken(fresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token accepted: %v", err)
	}

	other := NewService(memory.New(), nil, Config{Secret: []byte("other")}, log.Discard())
	foreign, _ := other.IssueToken(core.User{ID: "x"})
	if _, err := svc.ParseToken(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token signed with another secret accepted")
	}
}

func TestMiddleware(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	token, u, _ := svc.SignUp(ctx, "a@b.co", "secret1")

	var seen string
	h := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status %d, want %d", rec.Code, tt.want)
			}
		})
	}
	if seen != u.ID {
		t.Fatalf("handler saw user %q, want %q", seen, u.ID)
	}
}

func TestCurrentUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, u, _ := svc.SignUp(ctx, "a@b.co", "secret1")

	if _, err := svc.CurrentUser(ctx); !errors.Is(err, core.ErrAuthRequired) {
		t.Fatalf("expected auth required, got %v", err)
	}
	got, err := svc.CurrentUser(WithUserID(ctx, u.ID))
	if err != nil || got.Email != "a@b.co" {
		t.Fatalf("current user: %v %+v", err, got)
	}
}

func TestUpdateCredentials(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, u, _ := svc.SignUp(ctx, "ada@example.com", "secret1")
	svc.SignUp(ctx, "bob@example.com", "secret1")
	userCtx := WithUserID(ctx, u.ID)

	if _, err := svc.UpdateEmail(ctx, "x@example.com"); !errors.Is(err, core.ErrAuthRequired) {
		t.Fatalf("expected auth required, got %v", err)
	}
	tests := []struct {
		email string
		want  error
	}{
		{"not-an-email", ErrInvalidEmail},
		{"BOB@example.com", store.ErrDuplicateEmail},
	}
	for _, tt := range tests {
		if _, err := svc.UpdateEmail(userCtx, tt.email); !errors.Is(err, tt.want) {
			t.Fatalf("UpdateEmail(%q) = %v, want %v", tt.email, err, tt.want)
		}
	}
	moved, err := svc.UpdateEmail(userCtx, " Ada@New.example ")
	if err != nil || moved.Email != "ada@new.example" || moved.ID != u.ID {
		t.Fatalf("UpdateEmail: %+v %v", moved, err)
	}

	if err := svc.UpdatePassword(userCtx, "wrong!", "another1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if err := svc.UpdatePassword(userCtx, "secret1", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected weak password, got %v", err)
	}
	if err := svc.UpdatePassword(userCtx, "secret1", "another1"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.SignIn(ctx, "ada@new.example", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, _, err := svc.SignIn(ctx, "ada@new.example", "another1"); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}
}
