package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Reservations  *ReservationHandler
	Confirmations *ConfirmationHandler
	Middleware    []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Reservations != nil {
		mux.HandleFunc("/reservations", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Reservations.List(w, r)
			case http.MethodPost:
				cfg.Reservations.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/reservations/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/reservations/")
			if rest == "" {
				http.NotFound(w, r)
				return
			}

			if id, ok := strings.CutSuffix(rest, "/complete"); ok {
				if id == "" {
					http.NotFound(w, r)
					return
				}
				r = r.WithContext(ContextWithReservationID(r.Context(), id))
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Reservations.Complete(w, r)
				return
			}

			if strings.Contains(rest, "/") {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithReservationID(r.Context(), rest))
			switch r.Method {
			case http.MethodGet:
				cfg.Reservations.Get(w, r)
			case http.MethodDelete:
				cfg.Reservations.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodDelete)
			}
		})
	}

	if cfg.Confirmations != nil {
		mux.HandleFunc("/confirmations", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Confirmations.History(w, r)
		})
		mux.HandleFunc("/confirmations/self", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Confirmations.ConfirmSelf(w, r)
		})
		mux.HandleFunc("/confirmations/admin", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Confirmations.ConfirmAdmin(w, r)
		})
		mux.HandleFunc("/confirmations/badge", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Confirmations.ConfirmByBadge(w, r)
		})
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
