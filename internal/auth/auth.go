// Package auth handles email/password accounts and signed session cookies.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

const (
	Issuer            = "fintrack"
	MinPasswordLength = 6
	maxPasswordLength = 72 // bcrypt ignores anything longer

	fEmail        = "email"
	fPasswordHash = "password_hash"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrWeakPassword       = fmt.Errorf("password must be between %d and %d characters", MinPasswordLength, maxPasswordLength)
	ErrInvalidToken       = errors.New("invalid session token")
)

// Claims is the session token payload. Subject carries the user id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// User is the authenticated principal attached to a request.
type User struct {
	ID    string
	Email string
}

// ProfileWriter stores the profile created at signup.
type ProfileWriter interface {
	PutProfile(ctx context.Context, p core.UserProfile) error
}

type Service struct {
	store    store.Store
	profiles ProfileWriter
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	cost     int
}

func NewService(s store.Store, profiles ProfileWriter, secret []byte, ttl time.Duration) *Service {
	return &Service{
		store:    s,
		profiles: profiles,
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
		cost:     bcrypt.DefaultCost,
	}
}

// SignUp creates credentials and a default profile for a new account.
func (s *Service) SignUp(ctx context.Context, email, password string) (User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	if len(password) < MinPasswordLength || len(password) > maxPasswordLength {
		return User{}, &core.ValidationError{Field: "password", Err: ErrWeakPassword}
	}

	if _, err := s.findCredentials(ctx, email); err == nil {
		return User{}, &core.ValidationError{Field: "email", Err: ErrEmailTaken}
	} else if !errors.Is(err, store.ErrNotFound) {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	u := User{ID: uuid.NewString(), Email: email}
	err = s.store.Put(ctx, store.Credentials, u.ID, store.Document{
		store.FieldUserID: u.ID,
		fEmail:            email,
		fPasswordHash:     string(hash),
	})
	if err != nil {
		return User{}, core.External("record store", err)
	}
	if err := s.profiles.PutProfile(ctx, core.NewProfile(u.ID, email, s.now())); err != nil {
		return User{}, fmt.Errorf("create profile: %w", err)
	}
	return u, nil
}

// Login checks a password. Unknown emails and wrong passwords yield the
// same error.
func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return User{}, ErrInvalidCredentials
	}
	doc, err := s.findCredentials(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	hash, _ := doc[fPasswordHash].(string)
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	id, _ := doc[store.FieldUserID].(string)
	return User{ID: id, Email: email}, nil
}

func (s *Service) findCredentials(ctx context.Context, email string) (store.Document, error) {
	q := store.Query{Limit: 1}.Where(fEmail, store.Eq, email)
	for doc, err := range s.store.List(ctx, store.Credentials, q) {
		if err != nil {
			return nil, core.External("record store", err)
		}
		return doc, nil
	}
	return nil, store.ErrNotFound
}

// IssueToken signs a session token for u and returns it with its expiry.
func (s *Service) IssueToken(u User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tok, exp, nil
}

// ParseToken verifies signature, issuer and expiry.
func (s *Service) ParseToken(raw string) (User, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return User{}, ErrInvalidToken
	}
	return User{ID: claims.Subject, Email: claims.Email}, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", &core.ValidationError{Field: "email", Err: ErrInvalidEmail}
	}
	return strings.ToLower(addr.Address), nil
}
