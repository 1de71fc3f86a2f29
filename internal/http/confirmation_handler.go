package http

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/canteen-reservation/internal/canteen"
	"github.com/example/canteen-reservation/internal/persistence"
)

type confirmationService interface {
	ConfirmSelf(ctx context.Context, params canteen.SelfConfirmParams) (canteen.ConfirmationResult, error)
	ConfirmAdmin(ctx context.Context, params canteen.AdminConfirmParams) (canteen.ConfirmationResult, error)
	ConfirmByBadge(ctx context.Context, params canteen.BadgeConfirmParams) (canteen.ConfirmationResult, error)
	History(ctx context.Context, filter persistence.ConfirmationLogFilter) iter.Seq2[persistence.ConfirmationLogEntry, error]
}

type ConfirmationHandler struct {
	service   confirmationService
	responder responder
	logger    *slog.Logger
}

func NewConfirmationHandler(service confirmationService, logger *slog.Logger) *ConfirmationHandler {
	base := defaultLogger(logger)
	return &ConfirmationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ConfirmationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ConfirmationHandler", operation, attrs...)
}

type selfConfirmRequest struct {
	ReservationID string `json:"reservation_id"`
	PersonID      string `json:"person_id"`
	Note          string `json:"note,omitempty"`
}

type adminConfirmRequest struct {
	ReservationID string `json:"reservation_id"`
	PersonID      string `json:"person_id"`
	ActorID       string `json:"actor_id"`
	Note          string `json:"note,omitempty"`
}

type badgeConfirmRequest struct {
	TokenID     string `json:"token_id,omitempty"`
	Secret      string `json:"secret,omitempty"`
	SignedToken string `json:"signed_token,omitempty"`
	Note        string `json:"note,omitempty"`
}

type confirmationResultDTO struct {
	ReservationID string    `json:"reservation_id"`
	PersonID      string    `json:"person_id"`
	MealDate      string    `json:"meal_date"`
	MealCategory  string    `json:"meal_category"`
	Channel       string    `json:"channel"`
	ConsumedAt    time.Time `json:"consumed_at"`
	LogEntryID    string    `json:"log_entry_id"`
}

type confirmationLogEntryDTO struct {
	ID            string    `json:"id"`
	ReservationID string    `json:"reservation_id"`
	PersonID      string    `json:"person_id"`
	ActorID       string    `json:"actor_id"`
	Channel       string    `json:"channel"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
	Note          string    `json:"note,omitempty"`
}

type confirmationHistoryDTO struct {
	Entries []confirmationLogEntryDTO `json:"entries"`
}

func (h *ConfirmationHandler) ConfirmSelf(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req selfConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "ConfirmSelf", "reservation_id", req.ReservationID, "person_id", req.PersonID)

	result, err := h.service.ConfirmSelf(r.Context(), canteen.SelfConfirmParams{
		ReservationID: req.ReservationID,
		PersonID:      req.PersonID,
		Note:          req.Note,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "self confirmation failed", "error", err, "error_kind", canteen.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("log_entry_id", result.LogEntryID).InfoContext(r.Context(), "consumption confirmed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toConfirmationResultDTO(result))
}

func (h *ConfirmationHandler) ConfirmAdmin(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req adminConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "ConfirmAdmin", "reservation_id", req.ReservationID, "person_id", req.PersonID, "actor_id", req.ActorID)

	result, err := h.service.ConfirmAdmin(r.Context(), canteen.AdminConfirmParams{
		ReservationID: req.ReservationID,
		PersonID:      req.PersonID,
		ActorID:       req.ActorID,
		Note:          req.Note,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "admin confirmation failed", "error", err, "error_kind", canteen.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("log_entry_id", result.LogEntryID).InfoContext(r.Context(), "consumption confirmed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toConfirmationResultDTO(result))
}

func (h *ConfirmationHandler) ConfirmByBadge(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req badgeConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	// Badge credentials never reach the log attributes.
	logger := h.log(r.Context(), "ConfirmByBadge")

	result, err := h.service.ConfirmByBadge(r.Context(), canteen.BadgeConfirmParams{
		TokenID:     req.TokenID,
		Secret:      req.Secret,
		SignedToken: req.SignedToken,
		Note:        req.Note,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "badge confirmation failed", "error", err, "error_kind", canteen.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("reservation_id", result.ReservationID, "person_id", result.PersonID, "log_entry_id", result.LogEntryID).InfoContext(r.Context(), "consumption confirmed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toConfirmationResultDTO(result))
}

func (h *ConfirmationHandler) History(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	filter, err := historyFilterFromQuery(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	payload := confirmationHistoryDTO{Entries: []confirmationLogEntryDTO{}}
	for entry, iterErr := range h.service.History(r.Context(), filter) {
		if iterErr != nil {
			h.responder.handleServiceError(r.Context(), w, iterErr)
			return
		}
		payload.Entries = append(payload.Entries, confirmationLogEntryDTO{
			ID:            entry.ID,
			ReservationID: entry.ReservationID,
			PersonID:      entry.PersonID,
			ActorID:       entry.ActorID,
			Channel:       string(entry.Channel),
			ConfirmedAt:   entry.ConfirmedAt,
			Note:          entry.Note,
		})
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}

func historyFilterFromQuery(r *http.Request) (persistence.ConfirmationLogFilter, error) {
	query := r.URL.Query()
	filter := persistence.ConfirmationLogFilter{
		ReservationID: strings.TrimSpace(query.Get("reservation_id")),
		PersonID:      strings.TrimSpace(query.Get("person_id")),
		Channel:       persistence.ConfirmationChannel(strings.TrimSpace(query.Get("channel"))),
	}

	if raw := strings.TrimSpace(query.Get("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return persistence.ConfirmationLogFilter{}, errInvalidTimeFilter
		}
		filter.ConfirmedAfter = &since
	}
	if raw := strings.TrimSpace(query.Get("until")); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return persistence.ConfirmationLogFilter{}, errInvalidTimeFilter
		}
		filter.ConfirmedBefore = &until
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return persistence.ConfirmationLogFilter{}, errInvalidLimit
		}
		filter.Limit = limit
	}

	return filter, nil
}

func toConfirmationResultDTO(result canteen.ConfirmationResult) confirmationResultDTO {
	return confirmationResultDTO{
		ReservationID: result.ReservationID,
		PersonID:      result.PersonID,
		MealDate:      result.MealDate.String(),
		MealCategory:  string(result.MealCategory),
		Channel:       string(result.Channel),
		ConsumedAt:    result.ConsumedAt,
		LogEntryID:    result.LogEntryID,
	}
}
