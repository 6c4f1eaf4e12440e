package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sayarat/internal/auction/models"
	"sayarat/internal/auction/service"
	"sayarat/internal/auction/store"
	platformMW "sayarat/internal/platform/middleware"
	"sayarat/internal/token"
)

type staticVerifier struct {
	claims *token.Claims
}

func (v *staticVerifier) Verify(_ context.Context, _ string) (*token.Claims, error) {
	return v.claims, nil
}

func claimsFor(subject, role string) *token.Claims {
	return &token.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: subject,
		},
	}
}

func newRouter(t *testing.T, claims *token.Claims) (*chi.Mux, *service.Service) {
	t.Helper()

	svc, err := service.New(store.NewInMemoryStore())
	require.NoError(t, err)
	h := New(svc)

	r := chi.NewRouter()
	r.Use(platformMW.RequireAuth(&staticVerifier{claims: claims}))
	r.Post("/auctions", h.Create)
	r.Get("/auctions/{id}", h.Get)
	r.Get("/auctions/{id}/bids", h.ListBids)
	r.Post("/auctions/{id}/bids", h.PlaceBid)
	r.Post("/auctions/{id}/close", h.Close)
	r.Post("/auctions/{id}/cancel", h.Cancel)
	return r, svc
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer test-token")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createActive(t *testing.T, svc *service.Service) *models.Auction {
	t.Helper()
	now := time.Now()
	auction, err := svc.Create(context.Background(), service.CreateAuctionInput{
		SellerID:      "seller-1",
		Title:         "Toyota Hilux 2019",
		StartingPrice: 50,
		StartAt:       now.Add(-time.Hour),
		EndAt:         now.Add(time.Hour),
	})
	require.NoError(t, err)
	return auction
}

func TestCreate_AdminOnly(t *testing.T) {
	router, _ := newRouter(t, claimsFor("user-1", "buyer"))

	rec := doJSON(t, router, http.MethodPost, "/auctions", map[string]any{
		"title":          "Kia Rio 2021",
		"starting_price": 100,
		"start_at":       time.Now().Format(time.RFC3339),
		"end_at":         time.Now().Add(time.Hour).Format(time.RFC3339),
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "FORBIDDEN")
}

func TestCreate_Admin(t *testing.T) {
	router, _ := newRouter(t, claimsFor("admin-1", RoleAdmin))

	rec := doJSON(t, router, http.MethodPost, "/auctions", map[string]any{
		"title":          "Kia Rio 2021",
		"starting_price": 100,
		"start_at":       time.Now().Add(-time.Minute).Format(time.RFC3339),
		"end_at":         time.Now().Add(time.Hour).Format(time.RFC3339),
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var auction models.Auction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &auction))
	assert.Equal(t, "admin-1", auction.SellerID)
	assert.Equal(t, int64(100), auction.CurrentPrice)
	assert.Equal(t, models.StatusActive, auction.Status)
}

func TestGet(t *testing.T) {
	router, svc := newRouter(t, claimsFor("user-1", "buyer"))
	auction := createActive(t, svc)

	rec := doJSON(t, router, http.MethodGet, "/auctions/"+auction.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Auction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, auction.ID, got.ID)

	t.Run("unknown id", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/auctions/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "NOT_FOUND")
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/auctions/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPlaceBid(t *testing.T) {
	router, svc := newRouter(t, claimsFor("bidder-1", "buyer"))
	auction := createActive(t, svc)
	path := "/auctions/" + auction.ID.String() + "/bids"

	rec := doJSON(t, router, http.MethodPost, path, map[string]any{"amount": 100})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp placeBidResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(100), resp.CurrentPrice)
	assert.Equal(t, "bidder-1", resp.Bid.BidderID, "identity comes from the credential")

	t.Run("too low", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, path, map[string]any{"amount": 60})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "BID_TOO_LOW")
	})

	t.Run("bidder in body is ignored", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, path, map[string]any{
			"amount":    200,
			"bidder_id": "someone-else",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")
	})
}

func TestListBids(t *testing.T) {
	router, svc := newRouter(t, claimsFor("bidder-1", "buyer"))
	auction := createActive(t, svc)

	_, err := svc.PlaceBid(context.Background(), auction.ID, "bidder-1", 100)
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodGet, "/auctions/"+auction.ID.String()+"/bids", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listBidsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Bids, 1)
	assert.Equal(t, int64(100), resp.Bids[0].Amount)
}

func TestCloseAndCancel(t *testing.T) {
	router, svc := newRouter(t, claimsFor("admin-1", RoleAdmin))

	t.Run("close", func(t *testing.T) {
		auction := createActive(t, svc)
		rec := doJSON(t, router, http.MethodPost, "/auctions/"+auction.ID.String()+"/close", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var got models.Auction
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, models.StatusEnded, got.Status)
	})

	t.Run("cancel", func(t *testing.T) {
		auction := createActive(t, svc)
		rec := doJSON(t, router, http.MethodPost, "/auctions/"+auction.ID.String()+"/cancel", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var got models.Auction
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, models.StatusCancelled, got.Status)
	})

	t.Run("non-admin forbidden", func(t *testing.T) {
		buyerRouter, buyerSvc := newRouter(t, claimsFor("user-1", "buyer"))
		auction := createActive(t, buyerSvc)
		rec := doJSON(t, buyerRouter, http.MethodPost, "/auctions/"+auction.ID.String()+"/close", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
