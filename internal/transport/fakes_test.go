package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/session"
	"storefront/internal/storage"
)

const (
	testCookie     = "sid"
	testAdminEmail = "owner@shop.test"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func (m *memUserRepo) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Email]; ok {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *memUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[strings.ToLower(email)]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *memUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type memTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
}

func (m *memTokenRepo) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Token] = token
	return nil
}

func (m *memTokenRepo) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.tokens[token]
	if !ok {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if rt.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return rt, nil
}

func (m *memTokenRepo) Revoke(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.tokens[token]
	if !ok {
		return repository.ErrRefreshTokenNotFound
	}
	rt.Revoked = true
	return nil
}

func (m *memTokenRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, rt := range m.tokens {
		if rt.UserID == userID && !rt.Revoked {
			rt.Revoked = true
			n++
		}
	}
	return n, nil
}

type memProductRepo struct {
	mu       sync.Mutex
	products map[string]domain.Product
}

func (m *memProductRepo) Create(ctx context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = *p
	return nil
}

func (m *memProductRepo) Update(ctx context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return repository.ErrProductNotFound
	}
	m.products[p.ID] = *p
	return nil
}

func (m *memProductRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *memProductRepo) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

func (m *memProductRepo) List(ctx context.Context, f repository.ProductFilter) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Product{}
	for _, p := range m.products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.FeaturedOnly && !p.Featured {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(p.Name+" "+p.Description), strings.ToLower(f.Query)) {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memProductRepo) ListInUse(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, p := range m.products {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

type memContactRepo struct {
	mu       sync.Mutex
	messages []*domain.ContactMessage
}

func (m *memContactRepo) Create(ctx context.Context, msg *domain.ContactMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memContactRepo) List(ctx context.Context, limit int) ([]*domain.ContactMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.ContactMessage, 0, limit)
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.messages[i])
	}
	return out, nil
}

// testEnv is the API wired over in-memory repositories, a temp-dir image store
// and a live session manager.
type testEnv struct {
	router   http.Handler
	users    service.UserService
	products *memProductRepo
	contacts *memContactRepo
	sessions *session.Manager
	imageDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	imageDir := t.TempDir()
	blobs, err := storage.NewLocalStore(imageDir, "/images")
	require.NoError(t, err)

	products := &memProductRepo{products: map[string]domain.Product{}}
	contacts := &memContactRepo{}
	users := service.NewUserService(
		&memUserRepo{users: map[string]*domain.User{}},
		&memTokenRepo{tokens: map[string]*domain.RefreshToken{}},
		service.UserServiceConfig{
			JWTSecret:    "test-secret",
			IsAdminEmail: func(email string) bool { return email == testAdminEmail },
		},
	)
	productService := service.NewProductService(products, products, blobs, logger)

	sessions := session.NewManager(session.Config{}, logger)
	t.Cleanup(func() { sessions.Close() })

	auth := middleware.AuthMiddleware(users, logger)
	admin := middleware.RequireAdmin(logger)

	r := chi.NewRouter()
	NewUserHandler(users, logger).RegisterRoutes(r, auth)
	NewProductHandler(productService, 1<<20, logger).RegisterRoutes(r, auth, admin)
	NewCartHandler(productService, logger).RegisterRoutes(r,
		middleware.SessionMiddleware(sessions, middleware.SessionOptions{CookieName: testCookie}, logger))
	NewContactHandler(service.NewContactService(contacts, logger), logger).RegisterRoutes(r, auth, admin)

	return &testEnv{
		router:   r,
		users:    users,
		products: products,
		contacts: contacts,
		sessions: sessions,
		imageDir: imageDir,
	}
}

func (e *testEnv) seedProduct(id, name, price, category string, featured bool, age time.Duration) domain.Product {
	p := domain.Product{
		ID:          id,
		Name:        name,
		Description: name + " description",
		Price:       decimal.RequireFromString(price),
		ImageURL:    "/images/product-images/" + id + ".png",
		Category:    category,
		Featured:    featured,
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(-age),
	}
	e.products.Create(context.Background(), &p)
	return p
}

// token registers email if needed and returns an access token for it
func (e *testEnv) token(t *testing.T, email string) string {
	t.Helper()
	ctx := context.Background()
	_, err := e.users.Register(ctx, email, "password123", "Test", "User")
	if err != nil && err != repository.ErrUserAlreadyExists {
		require.NoError(t, err)
	}
	access, _, _, err := e.users.Login(ctx, email, "password123")
	require.NoError(t, err)
	return access
}

type requestOption func(*http.Request)

func withBearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(c *http.Cookie) requestOption {
	return func(r *http.Request) {
		if c != nil {
			r.AddCookie(c)
		}
	}
}

func (e *testEnv) doJSON(t *testing.T, method, path string, body interface{}, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == testCookie {
			return c
		}
	}
	return nil
}
