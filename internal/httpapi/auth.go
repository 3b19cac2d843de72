package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"saldokonter/backend/internal/domain"
	"saldokonter/backend/internal/service"
	"saldokonter/backend/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
)

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	users    store.UserStore
	now      func() time.Time
}

type saldoClaims struct {
	jwtlib.RegisteredClaims
	Role   string `json:"role"`
	Lokasi string `json:"lokasi,omitempty"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, users store.UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    users,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
// An existing account is left untouched so a rotated password survives restarts.
func (a *AuthManager) EnsureAdmin(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return fmt.Errorf("admin username required")
	}
	existing, err := a.users.GetUser(ctx, username)
	switch {
	case err == nil:
		if existing.Role != domain.RoleAdmin {
			log.Printf("[auth] WARN: bootstrap user %s exists with role %s", username, existing.Role)
		}
		return nil
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("load admin: %w", err)
	}

	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required to create admin %s", username)
	}
	hashed, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	err = a.users.CreateUser(ctx, domain.UserAccount{
		Username:  username,
		Password:  hashed,
		Role:      domain.RoleAdmin,
		Active:    true,
		CreatedAt: a.now(),
	})
	if errors.Is(err, store.ErrConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	log.Printf("[auth] created admin account %s", username)
	return nil
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || strings.TrimSpace(req.Password) == "" {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	user, err := a.users.GetUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.LoginResponse{}, err
	}

	a.upgradeLegacyPassword(ctx, user)
	if !verifyPassword(user.Password, req.Password) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if !user.Active {
		return domain.LoginResponse{}, ErrInactiveAccount
	}

	expiresAt := a.now().Add(a.tokenTTL)
	token, err := a.sign(*user, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        user.Role,
		Lokasi:      user.Lokasi,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

// upgradeLegacyPassword rewrites a plain-text password as a bcrypt hash in
// place. Accounts imported from the old spreadsheet still carry plain text.
func (a *AuthManager) upgradeLegacyPassword(ctx context.Context, user *domain.UserAccount) {
	if user.Password == "" || isPasswordHash(user.Password) {
		return
	}
	hashed, err := hashPassword(user.Password)
	if err != nil {
		return
	}
	user.Password = hashed
	if err := a.users.UpdateUser(ctx, *user); err != nil {
		log.Printf("[auth] WARN: cannot upgrade password for %s: %v", user.Username, err)
	}
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &saldoClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{Username: sub, Role: claims.Role, Lokasi: claims.Lokasi}, nil
}

func (a *AuthManager) sign(user domain.UserAccount, expiresAt time.Time) (string, error) {
	claims := saldoClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwtlib.NewNumericDate(a.now()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "saldokonter",
		},
		Role:   user.Role,
		Lokasi: user.Lokasi,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) CreateWorker(ctx context.Context, req domain.WorkerCreateRequest) (domain.Worker, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if len(username) < 3 {
		return domain.Worker{}, fmt.Errorf("%w: username must be at least 3 characters", service.ErrValidation)
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return domain.Worker{}, fmt.Errorf("%w: username must not contain spaces", service.ErrValidation)
	}
	if err := validateWorkerPassword(req.Password); err != nil {
		return domain.Worker{}, err
	}
	lokasi := domain.NormalizeLokasi(req.Lokasi)
	if !domain.IsLocation(lokasi) {
		return domain.Worker{}, fmt.Errorf("%w: unknown lokasi %q", service.ErrValidation, req.Lokasi)
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.Worker{}, fmt.Errorf("failed to hash password")
	}
	account := domain.UserAccount{
		Username:  username,
		Password:  passwordHash,
		Role:      domain.RoleWorker,
		Lokasi:    lokasi,
		Active:    true,
		CreatedAt: a.now(),
	}
	if err := a.users.CreateUser(ctx, account); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Worker{}, fmt.Errorf("%w: username already exists", store.ErrConflict)
		}
		return domain.Worker{}, err
	}
	return toWorker(account), nil
}

func (a *AuthManager) ListWorkers(ctx context.Context) ([]domain.Worker, error) {
	users, err := a.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Worker, 0, len(users))
	for _, user := range users {
		if user.Role != domain.RoleWorker {
			continue
		}
		result = append(result, toWorker(user))
	}
	return result, nil
}

// UpdateWorker resets a password, moves a worker to another shop, or
// (de)activates the account. Admin accounts are not managed here.
func (a *AuthManager) UpdateWorker(ctx context.Context, username string, req domain.WorkerUpdateRequest) (domain.Worker, error) {
	user, err := a.users.GetUser(ctx, username)
	if err != nil {
		return domain.Worker{}, err
	}
	if user.Role != domain.RoleWorker {
		return domain.Worker{}, store.ErrNotFound
	}

	if req.Password != nil {
		if err := validateWorkerPassword(*req.Password); err != nil {
			return domain.Worker{}, err
		}
		hashed, err := hashPassword(*req.Password)
		if err != nil {
			return domain.Worker{}, fmt.Errorf("failed to hash password")
		}
		user.Password = hashed
	}
	if req.Lokasi != nil {
		lokasi := domain.NormalizeLokasi(*req.Lokasi)
		if !domain.IsLocation(lokasi) {
			return domain.Worker{}, fmt.Errorf("%w: unknown lokasi %q", service.ErrValidation, *req.Lokasi)
		}
		user.Lokasi = lokasi
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := a.users.UpdateUser(ctx, *user); err != nil {
		return domain.Worker{}, err
	}
	return toWorker(*user), nil
}

func toWorker(user domain.UserAccount) domain.Worker {
	return domain.Worker{
		Username:  user.Username,
		Role:      user.Role,
		Lokasi:    user.Lokasi,
		Active:    user.Active,
		CreatedAt: user.CreatedAt,
	}
}

func validateWorkerPassword(password string) error {
	if len(strings.TrimSpace(password)) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", service.ErrValidation)
	}
	return nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
