package controllers

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/FitForgeApp/FitForge/app/models"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubUserRepo struct {
	users map[uint]*models.User
}

func (r *stubUserRepo) Create(*models.User) error { return nil }
func (r *stubUserRepo) Update(*models.User) error { return nil }
func (r *stubUserRepo) Count() (int64, error)     { return int64(len(r.users)), nil }

func (r *stubUserRepo) GetByID(id uint) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *stubUserRepo) GetByEmail(string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) List(int, int) ([]models.User, error) { return nil, nil }

type stubSubscriptionRepo struct {
	byUser map[uint][]models.Subscription
}

func (r *stubSubscriptionRepo) GetByID(uint) (*models.Subscription, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubSubscriptionRepo) GetByProviderRef(string, string) (*models.Subscription, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubSubscriptionRepo) GetByUserID(userID uint) ([]models.Subscription, error) {
	return r.byUser[userID], nil
}

func (r *stubSubscriptionRepo) Count() (int64, error) { return 0, nil }

func newSubscriptionTestApp(users *stubUserRepo, subs *stubSubscriptionRepo) *fiber.App {
	ctrl := NewSubscriptionController(users, subs)
	app := fiber.New()
	app.Get("/api/v1/users/:user_id/subscriptions", ctrl.HandleListUserSubscriptions)
	return app
}

func TestHandleListUserSubscriptions(t *testing.T) {
	endsAt := time.Now().Add(30 * 24 * time.Hour).UTC()
	users := &stubUserRepo{users: map[uint]*models.User{
		7: {ID: 7, Name: "Dana Coach", Email: "dana@example.com"},
	}}
	subs := &stubSubscriptionRepo{byUser: map[uint][]models.Subscription{
		7: {
			{ID: 1, UserID: 7, Status: models.SubscriptionStatusCancelled, Provider: models.ProviderStripe, ProviderRef: "sub_old"},
			{ID: 2, UserID: 7, Status: models.SubscriptionStatusActive, Provider: models.ProviderStripe, ProviderRef: "sub_new", EndsAt: &endsAt},
		},
	}}
	app := newSubscriptionTestApp(users, subs)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/users/7/subscriptions", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"active":true`)
	assert.Contains(t, string(body), "sub_new")
	assert.Contains(t, string(body), "sub_old")
}

func TestHandleListUserSubscriptionsNoActive(t *testing.T) {
	users := &stubUserRepo{users: map[uint]*models.User{
		9: {ID: 9, Name: "Sam Lifter", Email: "sam@example.com"},
	}}
	subs := &stubSubscriptionRepo{byUser: map[uint][]models.Subscription{}}
	app := newSubscriptionTestApp(users, subs)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/users/9/subscriptions", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"active":false`)
}

func TestHandleListUserSubscriptionsErrors(t *testing.T) {
	app := newSubscriptionTestApp(
		&stubUserRepo{users: map[uint]*models.User{}},
		&stubSubscriptionRepo{},
	)

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "non numeric user id", path: "/api/v1/users/abc/subscriptions", want: fiber.StatusBadRequest},
		{name: "zero user id", path: "/api/v1/users/0/subscriptions", want: fiber.StatusBadRequest},
		{name: "unknown user", path: "/api/v1/users/42/subscriptions", want: fiber.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tc.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}
