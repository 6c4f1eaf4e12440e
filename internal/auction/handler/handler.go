// Package handler exposes the auction surface over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"sayarat/internal/auction/models"
	"sayarat/internal/auction/service"
	platformMW "sayarat/internal/platform/middleware"
	"sayarat/internal/transport/httputil"
	dErrors "sayarat/pkg/domain-errors"
)

// RoleAdmin marks accounts allowed to manage auctions.
const RoleAdmin = "admin"

type Handler struct {
	service *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

type createAuctionRequest struct {
	Title         string    `json:"title"`
	StartingPrice int64     `json:"starting_price"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
}

type placeBidRequest struct {
	Amount int64 `json:"amount"`
}

type placeBidResponse struct {
	Bid          *models.Bid `json:"bid"`
	CurrentPrice int64       `json:"current_price"`
}

type listBidsResponse struct {
	Bids []*models.Bid `json:"bids"`
}

// Create handles POST /auctions. Admin only.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	claims := platformMW.GetClaims(r.Context())
	if claims == nil || claims.Role != RoleAdmin {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "auction management requires the admin role"))
		return
	}

	var req createAuctionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	auction, err := h.service.Create(r.Context(), service.CreateAuctionInput{
		SellerID:      claims.Subject,
		Title:         req.Title,
		StartingPrice: req.StartingPrice,
		StartAt:       req.StartAt,
		EndAt:         req.EndAt,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, auction)
}

// Get handles GET /auctions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := auctionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	auction, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, auction)
}

// ListBids handles GET /auctions/{id}/bids.
func (h *Handler) ListBids(w http.ResponseWriter, r *http.Request) {
	id, err := auctionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	bids, err := h.service.ListBids(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if bids == nil {
		bids = []*models.Bid{}
	}
	httputil.WriteJSON(w, http.StatusOK, listBidsResponse{Bids: bids})
}

// PlaceBid handles POST /auctions/{id}/bids. Bidder identity comes from the
// verified credential, never from the request body.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	bidderID := platformMW.GetUserID(r.Context())
	if bidderID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "bidding requires authentication"))
		return
	}

	id, err := auctionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req placeBidRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	accepted, err := h.service.PlaceBid(r.Context(), id, bidderID, req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, placeBidResponse{
		Bid:          accepted.Bid,
		CurrentPrice: accepted.CurrentPrice,
	})
}

// Close handles POST /auctions/{id}/close. Admin only.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	h.adminTransition(w, r, h.service.Close)
}

// Cancel handles POST /auctions/{id}/cancel. Admin only.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.adminTransition(w, r, h.service.Cancel)
}

func (h *Handler) adminTransition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id uuid.UUID) (*models.Auction, error)) {
	claims := platformMW.GetClaims(r.Context())
	if claims == nil || claims.Role != RoleAdmin {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "auction management requires the admin role"))
		return
	}

	id, err := auctionID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	auction, err := op(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, auction)
}

func auctionID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.UUID{}, dErrors.New(dErrors.CodeValidation, "auction id must be a valid UUID")
	}
	return id, nil
}
