package httpapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"saldokonter/backend/internal/domain"
	"saldokonter/backend/internal/service"
	"saldokonter/backend/internal/store"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	if _, exists := s.users[user.Username]; exists {
		return store.ErrConflict
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; !ok {
		return store.ErrNotFound
	}
	s.users[user.Username] = user
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	users := &userStoreStub{
		users: map[string]domain.UserAccount{
			"budi": {
				Username:  "budi",
				Password:  "budi123",
				Role:      domain.RoleWorker,
				Lokasi:    domain.LokasiPusat,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, users)
	resp, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "budi",
		Password: "budi123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Lokasi != domain.LokasiPusat {
		t.Fatalf("expected lokasi in login response, got %q", resp.Lokasi)
	}

	stored := users.users["budi"]
	if stored.Password == "budi123" || !strings.HasPrefix(stored.Password, "$2") {
		t.Fatalf("expected password to be upgraded to bcrypt, got %s", stored.Password)
	}
	if users.updates != 1 {
		t.Fatalf("expected one password upgrade write, got %d", users.updates)
	}

	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "budi", Password: "budi123"}); err != nil {
		t.Fatalf("login after upgrade failed: %v", err)
	}
	if users.updates != 1 {
		t.Fatalf("hashed password must not be rewritten again, got %d writes", users.updates)
	}
}

func TestParseTokenCarriesRoleAndLokasi(t *testing.T) {
	users := &userStoreStub{}
	manager := NewAuthManager("test-secret", time.Hour, users)
	if _, err := manager.CreateWorker(context.Background(), domain.WorkerCreateRequest{Username: "Sari", Password: "sari123", Lokasi: "terminal"}); err != nil {
		t.Fatalf("create worker failed: %v", err)
	}

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: "sari", Password: "sari123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "sari" || actor.Role != domain.RoleWorker || actor.Lokasi != domain.LokasiTerminal {
		t.Fatalf("unexpected actor: %#v", actor)
	}

	other := NewAuthManager("other-secret", time.Hour, users)
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("token signed with another secret must be rejected")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	users := &userStoreStub{}
	manager := NewAuthManager("test-secret", time.Hour, users)
	token, err := manager.sign(domain.UserAccount{Username: "rina", Role: domain.RoleWorker}, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := manager.ParseToken(token); err == nil {
		t.Fatalf("expired token must be rejected")
	}

	none := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, jwtlib.RegisteredClaims{Subject: "rina"})
	unsigned, err := none.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none failed: %v", err)
	}
	if _, err := manager.ParseToken(unsigned); err == nil {
		t.Fatalf("unsigned token must be rejected")
	}
}

func TestInactiveWorkerCannotLogin(t *testing.T) {
	users := &userStoreStub{}
	manager := NewAuthManager("test-secret", time.Hour, users)
	ctx := context.Background()
	if _, err := manager.CreateWorker(ctx, domain.WorkerCreateRequest{Username: "rina", Password: "rina123", Lokasi: domain.LokasiPasar}); err != nil {
		t.Fatalf("create worker failed: %v", err)
	}

	inactive := false
	worker, err := manager.UpdateWorker(ctx, "rina", domain.WorkerUpdateRequest{Active: &inactive})
	if err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if worker.Active {
		t.Fatalf("expected worker to be inactive")
	}

	if _, err := manager.Login(ctx, domain.LoginRequest{Username: "rina", Password: "rina123"}); !errors.Is(err, ErrInactiveAccount) {
		t.Fatalf("expected inactive account error, got %v", err)
	}
	if _, err := manager.Login(ctx, domain.LoginRequest{Username: "rina", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password must not reveal account state, got %v", err)
	}
}

func TestUpdateWorkerResetsPasswordAndMoves(t *testing.T) {
	users := &userStoreStub{}
	manager := NewAuthManager("test-secret", time.Hour, users)
	ctx := context.Background()
	if _, err := manager.CreateWorker(ctx, domain.WorkerCreateRequest{Username: "rina", Password: "rina123", Lokasi: domain.LokasiPasar}); err != nil {
		t.Fatalf("create worker failed: %v", err)
	}

	password := "baru456"
	lokasi := "pusat"
	worker, err := manager.UpdateWorker(ctx, "rina", domain.WorkerUpdateRequest{Password: &password, Lokasi: &lokasi})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if worker.Lokasi != domain.LokasiPusat {
		t.Fatalf("expected PUSAT, got %s", worker.Lokasi)
	}
	if _, err := manager.Login(ctx, domain.LoginRequest{Username: "rina", Password: "rina123"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := manager.Login(ctx, domain.LoginRequest{Username: "rina", Password: "baru456"}); err != nil {
		t.Fatalf("new password login failed: %v", err)
	}

	gudang := domain.LokasiGudang
	if _, err := manager.UpdateWorker(ctx, "rina", domain.WorkerUpdateRequest{Lokasi: &gudang}); !errors.Is(err, service.ErrValidation) {
		t.Fatalf("workers cannot be placed in the warehouse, got %v", err)
	}
}

func TestCreateWorkerValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     domain.WorkerCreateRequest
		wantErr error
	}{
		{name: "short username", req: domain.WorkerCreateRequest{Username: "ab", Password: "secret1", Lokasi: domain.LokasiPusat}, wantErr: service.ErrValidation},
		{name: "username with space", req: domain.WorkerCreateRequest{Username: "ab cd", Password: "secret1", Lokasi: domain.LokasiPusat}, wantErr: service.ErrValidation},
		{name: "short password", req: domain.WorkerCreateRequest{Username: "rina", Password: "12345", Lokasi: domain.LokasiPusat}, wantErr: service.ErrValidation},
		{name: "unknown lokasi", req: domain.WorkerCreateRequest{Username: "rina", Password: "secret1", Lokasi: "MALL"}, wantErr: service.ErrValidation},
		{name: "duplicate", req: domain.WorkerCreateRequest{Username: "admin", Password: "secret1", Lokasi: domain.LokasiPusat}, wantErr: store.ErrConflict},
	}

	users := &userStoreStub{}
	manager := NewAuthManager("test-secret", time.Hour, users)
	if err := manager.EnsureAdmin(context.Background(), "admin", "admin123"); err != nil {
		t.Fatalf("ensure admin failed: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := manager.CreateWorker(context.Background(), tt.req); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEnsureAdminKeepsExistingPassword(t *testing.T) {
	users := &userStoreStub{}
	manager := NewAuthManager("test-secret", time.Hour, users)
	ctx := context.Background()

	if err := manager.EnsureAdmin(ctx, "Admin", "first-pass"); err != nil {
		t.Fatalf("first ensure failed: %v", err)
	}
	if err := manager.EnsureAdmin(ctx, "admin", "second-pass"); err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}
	if _, err := manager.Login(ctx, domain.LoginRequest{Username: "admin", Password: "first-pass"}); err != nil {
		t.Fatalf("original admin password must survive restarts: %v", err)
	}

	fresh := NewAuthManager("test-secret", time.Hour, &userStoreStub{})
	if err := fresh.EnsureAdmin(ctx, "admin", ""); err == nil {
		t.Fatalf("creating an admin without a password must fail")
	}

	workers, err := manager.ListWorkers(ctx)
	if err != nil {
		t.Fatalf("list workers failed: %v", err)
	}
	if len(workers) != 0 {
		t.Fatalf("admin must not be listed as worker, got %#v", workers)
	}
}
