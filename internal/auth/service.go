// Package auth is the identity collaborator: it registers users, issues and
// checks bearer tokens, and tells subscribers when the current user changes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/store"
)

const MinPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidEmail       = fmt.Errorf("%w: invalid email", core.ErrValidation)
	ErrWeakPassword       = fmt.Errorf("%w: password must be at least %d characters", core.ErrValidation, MinPasswordLength)
)

type (
	// Listener observes identity changes. oldID is empty on sign-in and newID
	// is empty on sign-out.
	Listener func(ctx context.Context, oldID, newID string)

	Claims struct {
		Email string `json:"email"`
		jwt.RegisteredClaims
	}

	Config struct {
		Secret     []byte
		TokenTTL   time.Duration
		BcryptCost int
		// Seed is inserted into the category registry of every new user.
		Seed []core.Category
	}

	Service struct {
		users      store.UserStore
		categories store.Table[core.Category, core.CategoryPatch]
		cfg        Config
		logger     *log.Logger
		now        func() time.Time

		mu        sync.Mutex
		listeners []Listener
		revoked   map[string]time.Time // token id -> expiry
	}
)

func NewService(users store.UserStore, categories store.Table[core.Category, core.CategoryPatch], cfg Config, logger *log.Logger) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Service{
		users:      users,
		categories: categories,
		cfg:        cfg,
		logger:     logger.WithComponent(log.ComponentAuth),
		now:        time.Now,
		revoked:    map[string]time.Time{},
	}
}

// Subscribe registers l for every later identity change.
func (s *Service) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Service) notify(ctx context.Context, oldID, newID string) {
	s.mu.Lock()
	ls := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()
	for _, l := range ls {
		l(ctx, oldID, newID)
	}
}

// SignUp registers a user, seeds their category registry and signs them in.
func (s *Service) SignUp(ctx context.Context, email, password string) (string, core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", core.User{}, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return "", core.User{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", core.User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.CreateUser(ctx, email, hash)
	if err != nil {
		return "", core.User{}, fmt.Errorf("create user: %w", err)
	}
	if s.categories != nil && len(s.cfg.Seed) > 0 {
		if err := store.ApplySeed(ctx, s.categories, u.ID, s.cfg.Seed); err != nil {
			// the account exists; a missing seed only leaves the registry empty
			s.logger.WarnContext(ctx, "Category seed failed", log.NewFields().WithRow(u.ID, core.TableCategories, "").WithError(err, log.ErrorTypeDatabase).ToSlice()...)
		}
	}
	s.logger.InfoContext(ctx, "User signed up", log.FieldUserID, u.ID)

	token, err := s.IssueToken(u)
	if err != nil {
		return "", core.User{}, err
	}
	s.notify(ctx, "", u.ID)
	return token, u, nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (string, core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, hash, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return "", core.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", core.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "Sign-in rejected", log.FieldUserID, u.ID, log.FieldErrorType, log.ErrorTypeAuth)
		return "", core.User{}, ErrInvalidCredentials
	}

	token, err := s.IssueToken(u)
	if err != nil {
		return "", core.User{}, err
	}
	s.logger.InfoContext(ctx, "User signed in", log.FieldUserID, u.ID)
	s.notify(ctx, "", u.ID)
	return token, u, nil
}

// SignOut revokes token and ends the user's session.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.ParseToken(token)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.revoked[claims.ID] = claims.ExpiresAt.Time
	s.pruneRevoked()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "User signed out", log.FieldUserID, claims.Subject)
	s.notify(ctx, claims.Subject, "")
	return nil
}

// must hold s.mu
func (s *Service) pruneRevoked() {
	now := s.now()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
}

// IssueToken signs an HS256 token whose subject is the user id.
func (s *Service) IssueToken(u core.User) (string, error) {
	now := s.now()
	claims := Claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies signature, expiry and revocation.
func (s *Service) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, fmt.Errorf("%w: revoked", ErrInvalidToken)
	}
	return claims, nil
}

// CurrentUser resolves the user id carried by ctx.
func (s *Service) CurrentUser(ctx context.Context) (core.User, error) {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		return core.User{}, core.ErrAuthRequired
	}
	return s.users.UserByID(ctx, id)
}

// UpdateEmail moves the signed-in user to a new address. Tokens already issued
// stay valid; their subject is the unchanged user id.
func (s *Service) UpdateEmail(ctx context.Context, email string) (core.User, error) {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		return core.User{}, core.ErrAuthRequired
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return core.User{}, ErrInvalidEmail
	}
	u, err := s.users.UpdateEmail(ctx, id, email)
	if err != nil {
		return core.User{}, fmt.Errorf("update email: %w", err)
	}
	s.logger.InfoContext(ctx, "Email updated", log.FieldUserID, id)
	return u, nil
}

// UpdatePassword replaces the signed-in user's password after checking the
// current one.
func (s *Service) UpdatePassword(ctx context.Context, current, next string) error {
	u, err := s.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if len(next) < MinPasswordLength {
		return ErrWeakPassword
	}
	_, hash, err := s.users.UserByEmail(ctx, u.Email)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(current)); err != nil {
		s.logger.WarnContext(ctx, "Password change rejected", log.FieldUserID, u.ID, log.FieldErrorType, log.ErrorTypeAuth)
		return ErrInvalidCredentials
	}
	newHash, err := bcrypt.GenerateFromPassword([]byte(next), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, u.ID, newHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.logger.InfoContext(ctx, "Password updated", log.FieldUserID, u.ID)
	return nil
}
