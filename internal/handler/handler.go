package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Dan9191/ledger-service/internal/middleware"
	"github.com/Dan9191/ledger-service/internal/models"
	"github.com/Dan9191/ledger-service/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	svc      *service.Service
	log      *logrus.Logger
	validate *validator.Validate
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{
		svc:      svc,
		log:      log,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes builds the router with public and protected routes
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(h.log), middleware.Recoverer(h.log))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})

	// Public routes
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/users/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/auth/token", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", h.Refresh).Methods(http.MethodPost)

	// Protected routes
	auth := r.NewRoute().Subrouter()
	auth.Use(middleware.AuthMiddleware(h.svc, h.log))
	auth.HandleFunc("/users/me", h.Me).Methods(http.MethodGet)
	auth.HandleFunc("/users/me", h.DisableMe).Methods(http.MethodDelete)
	auth.HandleFunc("/users", h.ListUsers).Methods(http.MethodGet)
	auth.HandleFunc("/users/by-email/{email}", h.GetUserByEmail).Methods(http.MethodGet)
	auth.HandleFunc("/users/{id:[0-9]+}", h.DeleteUser).Methods(http.MethodDelete)
	auth.HandleFunc("/accounts/me", h.MyAccount).Methods(http.MethodGet)
	auth.HandleFunc("/transactions", h.CreateTransaction).Methods(http.MethodPost)
	auth.HandleFunc("/transactions", h.ListTransactions).Methods(http.MethodGet)
	auth.HandleFunc("/transactions/{id:[0-9]+}", h.GetTransaction).Methods(http.MethodGet)
	auth.HandleFunc("/transactions/{id:[0-9]+}", h.DeleteTransaction).Methods(http.MethodDelete)
	auth.HandleFunc("/transactions/{id:[0-9]+}/receipt", h.Receipt).Methods(http.MethodGet)
	auth.HandleFunc("/reports/summary", h.Summary).Methods(http.MethodGet)
	auth.HandleFunc("/categories", h.CreateCategory).Methods(http.MethodPost)
	auth.HandleFunc("/categories", h.ListCategories).Methods(http.MethodGet)

	return r
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func principal(ctx context.Context) models.Principal {
	p, _ := middleware.PrincipalFrom(ctx)
	return p
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// decode reads a JSON body into dst and validates it
func (h *Handler) decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errBadRequest{msg: "invalid request body"}
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errBadRequest{msg: "invalid field " + verrs[0].Field() + ": " + verrs[0].Tag()}
		}
		return errBadRequest{msg: err.Error()}
	}
	return nil
}

type errBadRequest struct {
	msg string
}

func (e errBadRequest) Error() string { return e.msg }

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP statuses
func statusFor(err error) int {
	var bad errBadRequest
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrSenderNotFound),
		errors.Is(err, models.ErrRecipientNotFound),
		errors.Is(err, models.ErrSelfTransfer),
		errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrCategoryNotFound),
		errors.Is(err, models.ErrInvalidCategory),
		errors.Is(err, models.ErrInvalidPeriod),
		errors.Is(err, models.ErrInvalidDate),
		errors.Is(err, models.ErrInvalidPagination):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized), errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrEmailTaken), errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		writeError(w, status, err.Error())
		return
	}

	h.log.WithField("request_id", middleware.RequestIDFrom(r.Context())).WithError(err).Error("Request failed")
	if errors.Is(err, models.ErrAggregationFailure) {
		writeError(w, status, models.ErrAggregationFailure.Error())
		return
	}
	writeError(w, status, "internal server error")
}
