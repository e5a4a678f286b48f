package http

import (
	"net/http"

	"financeiro/internal/core"
	"financeiro/internal/store"
)

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	filter := store.PositionFilter{
		AccountID: queryInt64Ptr(r, "accountId"),
		Active:    queryBoolPtr(r, "active"),
	}
	if raw := queryStringPtr(r, "bucket"); raw != nil {
		bucket := core.Bucket(*raw)
		filter.Bucket = &bucket
	}
	positions, err := s.investments.ListPositions(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if positions == nil {
		positions = []core.InvestmentPosition{}
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleCreatePosition(w http.ResponseWriter, r *http.Request) {
	var position core.InvestmentPosition
	if !decodeBody(w, r, &position) {
		return
	}
	created, err := s.investments.AddPosition(r.Context(), position)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	position, err := s.investments.GetPosition(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, position)
}

type positionPatchRequest struct {
	AccountID      *int64       `json:"accountId"`
	Bucket         *core.Bucket `json:"bucket"`
	InvestmentType *string      `json:"investment_type"`
	AssetCode      *string      `json:"asset_code"`
	Name           *string      `json:"name"`
	Active         *bool        `json:"is_active"`
}

func (s *Server) handleUpdatePosition(w http.ResponseWriter, r *http.Request) {
	var req positionPatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	updated, err := s.investments.UpdatePosition(r.Context(), r.PathValue("id"), store.PositionPatch{
		AccountID:      req.AccountID,
		Bucket:         req.Bucket,
		InvestmentType: req.InvestmentType,
		AssetCode:      req.AssetCode,
		Name:           req.Name,
		Active:         req.Active,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeletePosition(w http.ResponseWriter, r *http.Request) {
	if err := s.investments.DeletePosition(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecomputePosition(w http.ResponseWriter, r *http.Request) {
	position, err := s.investments.RecomputePosition(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, position)
}

func (s *Server) handleRecomputeAll(w http.ResponseWriter, r *http.Request) {
	result, err := s.investments.RecomputeAllPositions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	filter := store.EventFilter{
		PositionID: queryStringPtr(r, "positionId"),
		AccountID:  queryInt64Ptr(r, "accountId"),
	}
	events, err := s.investments.ListEvents(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if events == nil {
		events = []core.InvestmentEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var event core.InvestmentEvent
	if !decodeBody(w, r, &event) {
		return
	}
	created, err := s.investments.AddEvent(r.Context(), event)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type eventPatchRequest struct {
	PositionID     *string         `json:"positionId"`
	AccountID      *int64          `json:"accountId"`
	Date           *string         `json:"date"`
	Type           *core.EventType `json:"event_type"`
	AmountCents    *int64          `json:"amount_cents"`
	Quantity       *float64        `json:"quantity"`
	UnitPriceCents *int64          `json:"unit_price_cents"`
	FeesCents      *int64          `json:"fees_cents"`
	Note           *string         `json:"note"`
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventPatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	updated, err := s.investments.UpdateEvent(r.Context(), r.PathValue("id"), store.EventPatch{
		PositionID:     req.PositionID,
		AccountID:      req.AccountID,
		Date:           req.Date,
		Type:           req.Type,
		AmountCents:    req.AmountCents,
		Quantity:       req.Quantity,
		UnitPriceCents: req.UnitPriceCents,
		FeesCents:      req.FeesCents,
		Note:           req.Note,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.investments.DeleteEvent(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
