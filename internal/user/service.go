package user

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"campus-hub/internal/apperr"
	"campus-hub/internal/identity"
)

// Store is the persistence the user service needs. *Repository implements it.
type Store interface {
	CreateUser(ctx context.Context, u *User) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByLogin(ctx context.Context, login string) (*User, error)
	HasAdmin(ctx context.Context) (bool, error)
	FirstAdmin(ctx context.Context) (*User, error)
	Approve(ctx context.Context, id int64) (*User, error)
	ListPending(ctx context.Context) ([]User, error)
	SearchUsers(ctx context.Context, query string) ([]User, error)
}

type Service struct {
	repo      Store
	jwtSecret []byte
	issuer    string
	tokenTTL  time.Duration
	hashCost  int
}

type MyJWTClaims struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

func NewService(repo Store, secret, issuer string, ttl time.Duration) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(secret),
		issuer:    issuer,
		tokenTTL:  ttl,
		hashCost:  bcrypt.DefaultCost,
	}
}

func validateRegistration(req *RegisterRequest) error {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	switch {
	case len(req.Username) < 3 || len(req.Username) > 30:
		return apperr.Validation("user.register", "username", "must be 3 to 30 characters")
	case req.Email == "":
		return apperr.Validation("user.register", "email", "is required")
	case len(req.Password) < 6:
		return apperr.Validation("user.register", "password", "must be at least 6 characters")
	case len(req.DisplayName) > 50:
		return apperr.Validation("user.register", "display_name", "must be at most 50 characters")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return apperr.Validation("user.register", "email", "is not a valid address")
	}
	return nil
}

// Register creates an unapproved account. An admin must approve it before
// the user can log in.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*User, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}
	return s.create(ctx, req, false)
}

func (s *Service) create(ctx context.Context, req *RegisterRequest, admin bool) (*User, error) {
	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Username:    req.Username,
		Email:       req.Email,
		Password:    string(hashedPwd),
		DisplayName: req.DisplayName,
		IsAdmin:     admin,
		IsApproved:  admin,
	}
	u, err = s.repo.CreateUser(ctx, u)
	if errors.Is(err, ErrDuplicate) {
		return nil, apperr.Validation("user.register", "username", "user already exists with this email or username")
	}
	return u, err
}

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	login := req.Login
	if login == "" {
		login = req.Email
	}
	login = strings.TrimSpace(login)

	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Auth("user.login", "invalid credentials")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)); err != nil {
		return nil, apperr.Auth("user.login", "invalid credentials")
	}
	if !u.IsApproved {
		return nil, apperr.Forbidden("user.login", "account not approved yet")
	}

	ss, err := s.IssueToken(u)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{AccessToken: ss, User: u}, nil
}

func (s *Service) IssueToken(u *User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, MyJWTClaims{
		ID:       u.ID,
		Username: u.Username,
		IsAdmin:  u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})
	return token.SignedString(s.jwtSecret)
}

// Verify is the Identity Gate: it checks the token signature, issuer and
// expiry, then re-reads the user so that role changes and removed accounts
// take effect before the token expires.
func (s *Service) Verify(ctx context.Context, tokenString string) (identity.Identity, error) {
	claims := &MyJWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(s.issuer))
	if err != nil || !token.Valid {
		return identity.Identity{}, apperr.Auth("user.verify", "invalid or expired token")
	}

	u, err := s.repo.GetUserByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return identity.Identity{}, apperr.Auth("user.verify", "unknown user")
		}
		return identity.Identity{}, err
	}
	if !u.IsApproved {
		return identity.Identity{}, apperr.Auth("user.verify", "account not approved")
	}
	return identity.Identity{UserID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin}, nil
}

// EnsureAdmin creates the bootstrap admin account when no admin exists and
// returns the first admin.
func (s *Service) EnsureAdmin(ctx context.Context, username, email, password string) (*User, error) {
	exists, err := s.repo.HasAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return s.repo.FirstAdmin(ctx)
	}
	if password == "" {
		return nil, apperr.Validation("user.ensure_admin", "admin.password", "is not set")
	}
	return s.create(ctx, &RegisterRequest{Username: username, Email: email, Password: password}, true)
}

func (s *Service) Approve(ctx context.Context, id int64) (*User, error) {
	return s.repo.Approve(ctx, id)
}

func (s *Service) ListPending(ctx context.Context) ([]User, error) {
	return s.repo.ListPending(ctx)
}

func (s *Service) SearchUsers(ctx context.Context, query string) ([]User, error) {
	return s.repo.SearchUsers(ctx, query)
}
