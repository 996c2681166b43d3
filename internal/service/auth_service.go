package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ems/internal/config"
	"github.com/stemsi/exstem-ems/internal/credential"
	"github.com/stemsi/exstem-ems/internal/model"
	"github.com/stemsi/exstem-ems/internal/repository"
	"github.com/stemsi/exstem-ems/internal/validator"
)

// Principal is the logged-in user. It exists from Login until Logout and is
// passed explicitly to every operation that acts on behalf of a user.
type Principal struct {
	Username   string     `json:"username"`
	FullName   string     `json:"full_name"`
	Role       model.Role `json:"role"`
	SessionID  string     `json:"-"`
	LoggedInAt time.Time  `json:"logged_in_at"`
}

// IsTeacher reports whether p may use teacher operations.
func (p *Principal) IsTeacher() bool { return p != nil && p.Role == model.RoleTeacher }

// IsStudent reports whether p may take exams.
func (p *Principal) IsStudent() bool { return p != nil && p.Role == model.RoleStudent }

// Claims extends JWT standard claims with the role. Subject is the username
// and ID is the principal's session ID.
type Claims struct {
	jwt.RegisteredClaims
	Role model.Role `json:"role"`
}

// AuthService handles registration, login and the live principal of every
// user. A user has at most one principal; logging in again replaces it.
type AuthService struct {
	cfg    *config.Config
	users  *repository.UserRepository
	hasher credential.Hasher
	log    zerolog.Logger

	mu       sync.Mutex
	live     map[string]*Principal
	onLogout []func(*Principal)
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, users *repository.UserRepository, hasher credential.Hasher, log zerolog.Logger) *AuthService {
	return &AuthService{
		cfg:    cfg,
		users:  users,
		hasher: hasher,
		log:    log.With().Str("component", "auth").Logger(),
		live:   make(map[string]*Principal),
	}
}

// Hasher is the password hasher new digests are produced with.
func (s *AuthService) Hasher() credential.Hasher { return s.hasher }

// OnLogout registers fn to run whenever a principal ends, either by Logout
// or by a newer login of the same user.
func (s *AuthService) OnLogout(fn func(*Principal)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogout = append(s.onLogout, fn)
}

// Register validates req and stores a new user of the requested role.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := model.User{
		Username:     req.Username,
		PasswordHash: hash,
		FullName:     req.FullName,
		Role:         req.Role,
	}
	if err := s.users.Add(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info().Str("username", u.Username).Str("role", string(u.Role)).Msg("User registered")
	return &u, nil
}

// Login authenticates username and starts a new principal for it. An earlier
// principal of the same user is ended.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Principal, error) {
	u, err := s.users.Authenticate(ctx, username, password, s.hasher)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	p := &Principal{
		Username:   u.Username,
		FullName:   u.FullName,
		Role:       u.Role,
		SessionID:  uuid.New().String(),
		LoggedInAt: time.Now(),
	}

	s.mu.Lock()
	prev := s.live[u.Username]
	s.live[u.Username] = p
	hooks := s.onLogout
	s.mu.Unlock()

	if prev != nil {
		s.log.Info().Str("username", u.Username).Msg("Previous session replaced")
		for _, fn := range hooks {
			fn(prev)
		}
	}
	s.log.Info().Str("username", u.Username).Str("role", string(u.Role)).Msg("Logged in")
	return p, nil
}

// Logout ends p. Ending a principal that was already replaced is a no-op.
func (s *AuthService) Logout(p *Principal) {
	if p == nil {
		return
	}
	s.mu.Lock()
	cur, ok := s.live[p.Username]
	if !ok || cur.SessionID != p.SessionID {
		s.mu.Unlock()
		return
	}
	delete(s.live, p.Username)
	hooks := s.onLogout
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(p)
	}
	s.log.Info().Str("username", p.Username).Msg("Logged out")
}

// Principal returns the live principal of username.
func (s *AuthService) Principal(username string) (*Principal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.live[username]
	return p, ok
}

// IssueToken signs a JWT bound to p's session.
func (s *AuthService) IssueToken(p *Principal) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        p.SessionID,
			Subject:   p.Username,
			IssuedAt:  jwt.NewNumericDate(p.LoggedInAt),
			ExpiresAt: jwt.NewNumericDate(p.LoggedInAt.Add(s.cfg.JWTExpiry)),
		},
		Role: p.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ValidateSession returns the live principal the claims were issued for.
// Tokens of a replaced or ended principal are rejected.
func (s *AuthService) ValidateSession(claims *Claims) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.live[claims.Subject]
	if !ok || p.SessionID != claims.ID {
		return nil, ErrSessionInvalidated
	}
	return p, nil
}
