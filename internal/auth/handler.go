package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ayush/bookshelf/backend/internal/forms"
	"github.com/ayush/bookshelf/backend/internal/models"
	"github.com/ayush/bookshelf/backend/internal/shelf"
)

// Authenticator is the part of Service the form actions call.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*models.User, *models.Session, error)
	SignUp(ctx context.Context, name, email, password string) (*models.User, *models.Session, error)
}

// Failure is the body of a rejected form submission.
type Failure struct {
	Errors forms.Errors      `json:"errors"`
	Values map[string]string `json:"values"`
}

// Outcome of a form action: either a redirect with the new session, or a
// failure to re-display. Never both.
type Outcome struct {
	Redirect string
	Session  *models.Session
	Failure  *Failure
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	auth     Authenticator
	registry *shelf.Registry
	logger   *log.Logger
}

func NewHandler(auth Authenticator, registry *shelf.Registry, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{auth: auth, registry: registry, logger: logger}
}

// SignInOutcome validates the login form and signs in.
func (h *Handler) SignInOutcome(ctx context.Context, values url.Values) Outcome {
	return h.bridge(forms.LoginSchema, values, func() (*models.User, *models.Session, error) {
		return h.auth.SignIn(ctx, values.Get("email"), values.Get("password"))
	})
}

// SignUpOutcome validates the registration form and signs up.
func (h *Handler) SignUpOutcome(ctx context.Context, values url.Values) Outcome {
	return h.bridge(forms.RegisterSchema, values, func() (*models.User, *models.Session, error) {
		return h.auth.SignUp(ctx, values.Get("name"), values.Get("email"), values.Get("password"))
	})
}

// bridge runs validation first and only calls the backend on a clean
// form. Backend errors all collapse into the same failure.
func (h *Handler) bridge(schema forms.Schema, values url.Values, call func() (*models.User, *models.Session, error)) Outcome {
	errs := schema.Validate(values)
	if len(errs) > 0 {
		return Outcome{Failure: &Failure{Errors: errs, Values: schema.Echo(values)}}
	}

	user, sess, err := call()
	if err != nil || user == nil || sess == nil {
		h.logger.Warn("authentication failed", "err", err)
		return Outcome{Failure: &Failure{Errors: errs, Values: schema.Echo(values)}}
	}
	return Outcome{Redirect: shelf.DashboardPath, Session: sess}
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, `{"error":"invalid form"}`, http.StatusBadRequest)
		return
	}
	h.write(w, r, h.SignInOutcome(r.Context(), r.PostForm))
}

// Register handles POST /register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, `{"error":"invalid form"}`, http.StatusBadRequest)
		return
	}
	h.write(w, r, h.SignUpOutcome(r.Context(), r.PostForm))
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, out Outcome) {
	if out.Failure != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(out.Failure)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    out.Session.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionTTL / time.Second),
	})
	http.Redirect(w, r, out.Redirect, http.StatusSeeOther)
}

// Logout ends the current session and sends the user to the login page.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	to := shelf.LoginPath
	if st, ok := shelf.FromContext(r.Context()); ok {
		to, _ = st.Logout(r.Context())
		if sess := st.Session(); sess != nil {
			h.registry.Drop(sess.ID)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	http.Redirect(w, r, to, http.StatusSeeOther)
}
