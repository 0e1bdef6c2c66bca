package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"compliscore/internal/domain"
)

// AccountStore abstracts account persistence for the auth workflows.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (domain.Account, error)
	Add(ctx context.Context, acct domain.Account) error
	List(ctx context.Context) ([]domain.Account, error)
}

// Principal is the authenticated identity handed to scoring and report calls.
// The core trusts it without re-validating identity.
type Principal struct {
	UserID   string          `json:"userId"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Role     string          `json:"role"`
	Audience domain.Audience `json:"audience"`
}

// Result is a successful register/login outcome.
type Result struct {
	Token     string    `json:"token"`
	Principal Principal `json:"principal"`
}

// Service issues and verifies HS256 tokens over an account store.
type Service struct {
	store    AccountStore
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
	idGen    func() string
}

func NewService(store AccountStore, secret []byte, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		store:    store,
		secret:   secret,
		tokenTTL: tokenTTL,
		now:      func() time.Time { return time.Now().UTC() },
		idGen:    func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:12] },
	}
}

// Register creates an account and returns a signed token.
func (s *Service) Register(ctx context.Context, email, name, password string, audience domain.Audience) (Result, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return Result{}, domain.ErrInvalidCredentials
	}
	if !audience.Valid() || audience == domain.AudienceBoth {
		audience = domain.AudienceIndividual
	}
	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return Result{}, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return Result{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Result{}, err
	}
	acct := domain.Account{
		ID:        s.idGen(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		PassHash:  hash,
		Role:      domain.RoleUser,
		Audience:  audience,
		CreatedAt: s.now(),
	}
	if err := s.store.Add(ctx, acct); err != nil {
		return Result{}, err
	}
	return s.resultFor(acct)
}

// RegisterAdmin creates an administrator account. Only reachable from the
// seed command, never from the HTTP surface.
func (s *Service) RegisterAdmin(ctx context.Context, email, name, password string) (Result, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return Result{}, domain.ErrInvalidCredentials
	}
	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return Result{}, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return Result{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Result{}, err
	}
	acct := domain.Account{
		ID:        s.idGen(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		PassHash:  hash,
		Role:      domain.RoleAdmin,
		Audience:  domain.AudienceCompany,
		CreatedAt: s.now(),
	}
	if err := s.store.Add(ctx, acct); err != nil {
		return Result{}, err
	}
	return s.resultFor(acct)
}

// Login verifies credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (Result, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	acct, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return Result{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return Result{}, err
	}
	if bcrypt.CompareHashAndPassword(acct.PassHash, []byte(password)) != nil {
		return Result{}, domain.ErrInvalidCredentials
	}
	return s.resultFor(acct)
}

// Accounts lists registered accounts for the admin surface.
func (s *Service) Accounts(ctx context.Context) ([]domain.Account, error) {
	return s.store.List(ctx)
}

// VerifyToken parses and validates a bearer token into a principal.
func (s *Service) VerifyToken(tokenString string) (Principal, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Principal{}, domain.ErrInvalidCredentials
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, domain.ErrInvalidCredentials
	}
	str := func(key string) string {
		v, _ := claims[key].(string)
		return v
	}
	return Principal{
		UserID:   str("sub"),
		Name:     str("name"),
		Email:    str("email"),
		Role:     str("role"),
		Audience: domain.Audience(str("aud_type")),
	}, nil
}

func (s *Service) resultFor(acct domain.Account) (Result, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":      acct.ID,
		"name":     acct.Name,
		"email":    acct.Email,
		"role":     acct.Role,
		"aud_type": string(acct.Audience),
		"iat":      now.Unix(),
		"exp":      now.Add(s.tokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Token: token,
		Principal: Principal{
			UserID:   acct.ID,
			Name:     acct.Name,
			Email:    acct.Email,
			Role:     acct.Role,
			Audience: acct.Audience,
		},
	}, nil
}
