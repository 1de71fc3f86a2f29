package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/canteen-reservation/internal/canteen"
)

var (
	errBadRequestBody       = errors.New("無効なリクエスト形式です。")
	errInvalidReservationID = errors.New("無効な予約 ID です。")
	errInvalidDate          = errors.New("日付は YYYY-MM-DD 形式で指定してください。")
	errMissingDate          = errors.New("日付を指定してください。")
	errInvalidTimeFilter    = errors.New("since と until は RFC 3339 形式で指定してください。")
	errInvalidLimit         = errors.New("limit は 0 以上の整数で指定してください。")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var conflict *canteen.MemberAlreadyReservedError
	if errors.As(err, &conflict) {
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "MEMBER_ALREADY_RESERVED",
			Message:   "同じ食事枠にすでに予約されている利用者が含まれています。",
			Details: map[string]any{
				"meal_date":     conflict.MealDate.String(),
				"meal_category": conflict.MealCategory.String(),
				"person_ids":    conflict.PersonIDs,
			},
		})
		return
	}

	var vErr *canteen.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Message: "入力内容に誤りがあります。",
			Errors:  localizeValidationErrors(vErr),
		})
		return
	}

	switch {
	case errors.Is(err, canteen.ErrPastDate):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "PAST_DATE",
			Message:   "過去の日付には予約できません。",
		})
	case errors.Is(err, canteen.ErrEmptyMembers):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Message: "利用者を 1 名以上指定してください。",
		})
	case errors.Is(err, canteen.ErrDuplicateMembers):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Message: "同じ利用者が重複して指定されています。",
		})
	case errors.Is(err, canteen.ErrMemberNotFound):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Message: "存在しない、または無効な利用者が含まれています。",
		})
	case errors.Is(err, canteen.ErrCrossDepartment):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Message: "他部署の利用者は予約に含められません。",
		})
	case errors.Is(err, canteen.ErrPersonNotFound):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Message: "指定された利用者が見つかりません。",
		})
	case errors.Is(err, canteen.ErrAlreadyConfirmed):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "ALREADY_CONFIRMED",
			Message:   "すでに喫食確認済みです。",
		})
	case errors.Is(err, canteen.ErrOutsideMealWindow):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "OUTSIDE_MEAL_WINDOW",
			Message:   "現在は食事時間帯ではありません。",
		})
	case errors.Is(err, canteen.ErrNotCancellable):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "NOT_CANCELLABLE",
			Message:   "この予約はすでに喫食済みまたは終了しているため取り消せません。",
		})
	case errors.Is(err, canteen.ErrNotCompletable):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "NOT_COMPLETABLE",
			Message:   "この予約はすでに終了しているため完了にできません。",
		})
	case errors.Is(err, canteen.ErrNotReserved):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: "NOT_RESERVED",
			Message:   "この食事枠の予約が見つかりません。",
		})
	case errors.Is(err, canteen.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "指定されたリソースが見つかりません。"})
	case errors.Is(err, canteen.ErrTokenRevoked):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "TOKEN_REVOKED",
			Message:   "この食堂バッジは無効化されています。",
		})
	case errors.Is(err, canteen.ErrTokenInvalid):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "TOKEN_INVALID",
			Message:   "食堂バッジを認証できません。",
		})
	default:
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "サーバー内部でエラーが発生しました。"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *canteen.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "meal date is required":
		return "食事日は必須です。"
	case "meal category must be breakfast, lunch or dinner":
		return "食事区分は breakfast、lunch、dinner のいずれかで指定してください。"
	case "requester is required":
		return "申請者は必須です。"
	case "reservation is required":
		return "予約 ID は必須です。"
	case "person is required":
		return "利用者 ID は必須です。"
	case "acting supervisor is required":
		return "確認者 ID は必須です。"
	default:
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Details   map[string]any    `json:"details,omitempty"`
}
