package http

import (
	"net/http"
	"strings"
)

// RouterConfig wires handlers and middleware into the router. RequireAuth
// guards admin routes and RateLimit guards the public write routes; either
// may be nil.
type RouterConfig struct {
	Info         *InfoHandler
	Auth         *AuthHandler
	Rooms        *RoomHandler
	Reservations *ReservationHandler
	RequireAuth  func(http.Handler) http.Handler
	RateLimit    func(http.Handler) http.Handler
	Middleware   []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	protected := func(h http.HandlerFunc) http.Handler {
		return wrap(h, cfg.RequireAuth)
	}
	limited := func(h http.HandlerFunc) http.Handler {
		return wrap(h, cfg.RateLimit)
	}

	if cfg.Info != nil {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Info.Health(w, r)
		})
		mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Info.Info(w, r)
		})
	}

	if cfg.Auth != nil {
		login := limited(cfg.Auth.CreateToken)
		logout := protected(cfg.Auth.DeleteCurrentToken)
		mux.HandleFunc("/auth/tokens", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			login.ServeHTTP(w, r)
		})
		mux.HandleFunc("/auth/tokens/current", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			logout.ServeHTTP(w, r)
		})
	}

	if cfg.Rooms != nil {
		createRoom := protected(cfg.Rooms.Create)
		mux.HandleFunc("/rooms", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Rooms.List(w, r)
			case http.MethodPost:
				createRoom.ServeHTTP(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/rooms/", func(w http.ResponseWriter, r *http.Request) {
			id, sub, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/rooms/"), "/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			switch sub {
			case "":
				switch r.Method {
				case http.MethodGet:
					cfg.Rooms.Get(w, r, id)
				case http.MethodPatch:
					protected(func(w http.ResponseWriter, r *http.Request) { cfg.Rooms.Update(w, r, id) }).ServeHTTP(w, r)
				case http.MethodDelete:
					protected(func(w http.ResponseWriter, r *http.Request) { cfg.Rooms.Delete(w, r, id) }).ServeHTTP(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
				}
			case "intervals":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Rooms.Intervals(w, r, id)
			case "collision":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Rooms.Collision(w, r, id)
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.Reservations != nil {
		createReservation := limited(cfg.Reservations.Create)
		listReservations := protected(cfg.Reservations.List)
		mux.HandleFunc("/reservations", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				listReservations.ServeHTTP(w, r)
			case http.MethodPost:
				createReservation.ServeHTTP(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/reservations/", func(w http.ResponseWriter, r *http.Request) {
			token, sub, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/reservations/"), "/")
			if token == "" {
				http.NotFound(w, r)
				return
			}
			switch sub {
			case "":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Reservations.Verify(w, r, token)
			case "approve":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				limited(func(w http.ResponseWriter, r *http.Request) { cfg.Reservations.Approve(w, r, token) }).ServeHTTP(w, r)
			default:
				http.NotFound(w, r)
			}
		})
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}

func wrap(h http.HandlerFunc, mw func(http.Handler) http.Handler) http.Handler {
	if mw == nil {
		return h
	}
	return mw(h)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
