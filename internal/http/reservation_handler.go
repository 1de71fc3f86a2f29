package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/canteen-reservation/internal/canteen"
	"github.com/example/canteen-reservation/internal/civildate"
	"github.com/example/canteen-reservation/internal/mealwindow"
	"github.com/example/canteen-reservation/internal/persistence"
)

type reservationService interface {
	Submit(ctx context.Context, params canteen.SubmitParams) (persistence.Reservation, error)
	Cancel(ctx context.Context, actorID, reservationID string) error
	Complete(ctx context.Context, actorID, reservationID string) error
	Get(ctx context.Context, reservationID string) (persistence.Reservation, error)
	Status(ctx context.Context, date civildate.Date) (canteen.DayStatus, error)
}

type ReservationHandler struct {
	service   reservationService
	responder responder
	logger    *slog.Logger
}

func NewReservationHandler(service reservationService, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	return &ReservationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

type reservationRequest struct {
	RequesterID  string   `json:"requester_id"`
	MealDate     string   `json:"meal_date"`
	MealCategory string   `json:"meal_category"`
	MemberIDs    []string `json:"member_ids"`
	Remark       string   `json:"remark,omitempty"`
}

type reservationMemberDTO struct {
	PersonID          string     `json:"person_id"`
	ConsumptionStatus string     `json:"consumption_status"`
	ConsumedAt        *time.Time `json:"consumed_at,omitempty"`
}

type reservationDTO struct {
	ID                string                 `json:"id"`
	DepartmentID      string                 `json:"department_id"`
	RequesterID       string                 `json:"requester_id"`
	MealDate          string                 `json:"meal_date"`
	MealCategory      string                 `json:"meal_category"`
	LifecycleStatus   string                 `json:"lifecycle_status"`
	ConsumptionStatus string                 `json:"consumption_status"`
	ConsumedAt        *time.Time             `json:"consumed_at,omitempty"`
	Remark            string                 `json:"remark,omitempty"`
	Members           []reservationMemberDTO `json:"members"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

type dayStatusDTO struct {
	Date            string           `json:"date"`
	Reservations    []reservationDTO `json:"reservations"`
	MembersReserved int              `json:"members_reserved"`
	MembersConsumed int              `json:"members_consumed"`
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	var mealDate civildate.Date
	if strings.TrimSpace(req.MealDate) != "" {
		parsed, err := civildate.Parse(req.MealDate)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
			return
		}
		mealDate = parsed
	}

	logger := h.log(r.Context(), "Create", "requester_id", req.RequesterID)

	reservation, err := h.service.Submit(r.Context(), canteen.SubmitParams{
		RequesterID:  req.RequesterID,
		MealDate:     mealDate,
		MealCategory: mealwindow.Category(req.MealCategory),
		MemberIDs:    req.MemberIDs,
		Remark:       req.Remark,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation submission failed", "error", err, "error_kind", canteen.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("reservation_id", reservation.ID).InfoContext(r.Context(), "reservation created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toReservationDTO(reservation))
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingDate)
		return
	}
	date, err := civildate.Parse(raw)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
		return
	}

	status, err := h.service.Status(r.Context(), date)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := dayStatusDTO{
		Date:            status.Date.String(),
		Reservations:    make([]reservationDTO, 0, len(status.Reservations)),
		MembersReserved: status.MembersReserved,
		MembersConsumed: status.MembersConsumed,
	}
	for _, reservation := range status.Reservations {
		payload.Reservations = append(payload.Reservations, toReservationDTO(reservation))
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}

func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservationID, ok := ReservationIDFromContext(r.Context())
	if !ok || strings.TrimSpace(reservationID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservationID)
		return
	}

	reservation, err := h.service.Get(r.Context(), reservationID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toReservationDTO(reservation))
}

func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservationID, ok := ReservationIDFromContext(r.Context())
	if !ok || strings.TrimSpace(reservationID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservationID)
		return
	}

	actorID := strings.TrimSpace(r.URL.Query().Get("actor_id"))
	logger := h.log(r.Context(), "Delete", "reservation_id", reservationID, "actor_id", actorID)
	if err := h.service.Cancel(r.Context(), actorID, reservationID); err != nil {
		logger.ErrorContext(r.Context(), "reservation cancellation failed", "error", err, "error_kind", canteen.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type completeRequest struct {
	ActorID string `json:"actor_id"`
}

func (h *ReservationHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservationID, ok := ReservationIDFromContext(r.Context())
	if !ok || strings.TrimSpace(reservationID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservationID)
		return
	}

	var req completeRequest
	if r.Body != nil {
		// The body is optional; only a malformed one is rejected.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
	}

	logger := h.log(r.Context(), "Complete", "reservation_id", reservationID, "actor_id", req.ActorID)
	if err := h.service.Complete(r.Context(), req.ActorID, reservationID); err != nil {
		logger.ErrorContext(r.Context(), "reservation completion failed", "error", err, "error_kind", canteen.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation completed")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func toReservationDTO(reservation persistence.Reservation) reservationDTO {
	dto := reservationDTO{
		ID:                reservation.ID,
		DepartmentID:      reservation.DepartmentID,
		RequesterID:       reservation.RequesterID,
		MealDate:          reservation.MealDate.String(),
		MealCategory:      string(reservation.MealCategory),
		LifecycleStatus:   string(reservation.LifecycleStatus),
		ConsumptionStatus: string(reservation.ConsumptionStatus),
		ConsumedAt:        reservation.ConsumedAt,
		Remark:            reservation.Remark,
		Members:           make([]reservationMemberDTO, 0, len(reservation.Members)),
		CreatedAt:         reservation.CreatedAt,
		UpdatedAt:         reservation.UpdatedAt,
	}
	for _, member := range reservation.Members {
		dto.Members = append(dto.Members, reservationMemberDTO{
			PersonID:          member.PersonID,
			ConsumptionStatus: string(member.ConsumptionStatus),
			ConsumedAt:        member.ConsumedAt,
		})
	}
	return dto
}
