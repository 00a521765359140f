package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "fredcli/internal/errors"
	"fredcli/internal/middleware"
	"fredcli/internal/services"
	api "fredcli/pkg/contracts/api/v1"
	"fredcli/pkg/contracts/domain"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 500
)

// SeriesHandler handles the /api/series endpoints
type SeriesHandler struct {
	service      *services.SeriesService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validation   *middleware.ValidationMiddleware
	query        *middleware.QueryParamValidator
}

// NewSeriesHandler creates a new series handler
func NewSeriesHandler(service *services.SeriesService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *SeriesHandler {
	return &SeriesHandler{
		service:      service,
		logger:       logger.With(slog.String("handler", "series")),
		errorHandler: errorHandler,
		validation:   middleware.NewValidationMiddleware(logger, errorHandler),
		query:        middleware.NewQueryParamValidator(errorHandler),
	}
}

// Routes returns the series routes, to be mounted at /api/series
func (h *SeriesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Route("/{name}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.With(h.validation.ValidateRequest).Post("/run", h.Run)
		r.Get("/runs", h.Runs)
		r.Get("/observations", h.Observations)
	})
	return r
}

// List handles GET /api/series
func (h *SeriesHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries := h.service.List(r.Context())
	render.JSON(w, r, api.SeriesListResponse{Series: summaries, Count: len(summaries)})
}

// Get handles GET /api/series/{name}
func (h *SeriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, summary)
}

// Run handles POST /api/series/{name}/run
func (h *SeriesHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req api.RunRequest
	if err := h.validation.DecodeAndValidate(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Run requested",
		slog.String("series", name),
		slog.String("cutoff", req.Cutoff))

	report, shared, err := h.service.Run(r.Context(), name, req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.RunResponse{Report: report, Shared: shared})
}

// Runs handles GET /api/series/{name}/runs
func (h *SeriesHandler) Runs(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, maxRunsLimit, defaultRunsLimit)
	if !ok {
		return
	}

	runs, err := h.service.Runs(r.Context(), name, limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if runs == nil {
		runs = []domain.RunReport{}
	}
	render.JSON(w, r, api.RunsResponse{Series: name, Runs: runs})
}

// Observations handles GET /api/series/{name}/observations
func (h *SeriesHandler) Observations(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	obs, err := h.service.Observations(r.Context(), name)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if obs == nil {
		obs = []domain.ArchivedObservation{}
	}
	render.JSON(w, r, api.ObservationsResponse{Series: name, Observations: obs, Count: len(obs)})
}
