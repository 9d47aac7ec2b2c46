// Package auth signs users up and in, keeps their sessions, and turns the
// login and registration forms into redirects or re-displayable failures.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/bookshelf/backend/internal/models"
	"github.com/ayush/bookshelf/backend/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = errors.New("not authenticated")
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, email, hashedPw string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// NameWriter stores a user's display name.
type NameWriter interface {
	SetName(ctx context.Context, userID, name string) error
}

// Sessions persists login sessions.
type Sessions interface {
	Create(ctx context.Context, user *models.User) (*models.Session, error)
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// Service is the authentication backend.
type Service struct {
	users    UserStore
	names    NameWriter
	sessions Sessions
	secret   []byte
}

func NewService(users UserStore, names NameWriter, sessions Sessions, secret string) *Service {
	return &Service{users: users, names: names, sessions: sessions, secret: []byte(secret)}
}

// SignUp creates the account, records its display name and opens a session.
// If a step after the account is created fails, the account is deleted
// again so the email can be reused.
func (s *Service) SignUp(ctx context.Context, name, email, password string) (*models.User, *models.Session, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.CreateUser(ctx, email, string(hashed))
	if err != nil {
		return nil, nil, err
	}
	if err := s.names.SetName(ctx, user.ID, strings.TrimSpace(name)); err != nil {
		return nil, nil, s.undoSignUp(ctx, user, fmt.Errorf("set name: %w", err))
	}
	sess, err := s.open(ctx, user)
	if err != nil {
		return nil, nil, s.undoSignUp(ctx, user, err)
	}
	return user, sess, nil
}

func (s *Service) undoSignUp(ctx context.Context, user *models.User, cause error) error {
	if err := s.users.DeleteUser(context.WithoutCancel(ctx), user.ID); err != nil {
		return errors.Join(cause, fmt.Errorf("roll back user %s: %w", user.ID, err))
	}
	return cause
}

// SignIn checks the password and opens a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*models.User, *models.Session, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	sess, err := s.open(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, sess, nil
}

// SignOut ends a session. Unknown ids are not an error.
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

func (s *Service) open(ctx context.Context, user *models.User) (*models.Session, error) {
	sess, err := s.sessions.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	token, err := s.issueToken(sess)
	if err != nil {
		return nil, err
	}
	sess.AccessToken = token
	return sess, nil
}

type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (s *Service) issueToken(sess *models.Session) (string, error) {
	claims := tokenClaims{
		Email: sess.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// sessionIDFromToken verifies a bearer token and returns its session id.
func (s *Service) sessionIDFromToken(raw string) (string, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrNotAuthenticated
	}
	return claims.ID, nil
}

// Resolve finds the session of a request from its session cookie or a
// bearer access token. A token whose session was signed out is rejected.
func (s *Service) Resolve(r *http.Request) (*models.Session, error) {
	var id string
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		sid, err := s.sessionIDFromToken(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			return nil, err
		}
		id = sid
	} else if cookie, err := r.Cookie(SessionCookie); err == nil {
		id = cookie.Value
	}
	if id == "" {
		return nil, ErrNotAuthenticated
	}

	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.Expired(time.Now()) {
		return nil, ErrNotAuthenticated
	}
	return sess, nil
}
