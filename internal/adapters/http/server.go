package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"componentfinder/internal/domain"
	"componentfinder/internal/ports"
	"componentfinder/internal/services/search"
)

type Server struct {
	searcher  ports.Searcher
	catalog   ports.Catalog
	refresher ports.Refresher
	metrics   http.Handler
	log       logrus.FieldLogger
}

type Option func(*Server)

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

func WithLogger(l logrus.FieldLogger) Option { return func(s *Server) { s.log = l } }

func New(searcher ports.Searcher, catalog ports.Catalog, refresher ports.Refresher, opts ...Option) *Server {
	s := &Server{searcher: searcher, catalog: catalog, refresher: refresher, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the chi.Router serving the API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.requestLog, middleware.Recoverer)

	r.Get("/healthz", s.getHealthz)
	r.Get("/components", s.getComponents)
	r.Get("/components/{id}", s.getComponent)
	r.Post("/components/{id}/refresh", s.postRefresh)
	r.Get("/categories", s.getCategories)
	r.Get("/vendors", s.getVendors)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

type searchResponse struct {
	Count int                      `json:"count"`
	Items []domain.MergedComponent `json:"items"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type refreshResponse struct {
	ID        string                  `json:"id"`
	Status    string                  `json:"status"`
	Component *domain.MergedComponent `json:"component,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// DefaultRefreshTimeout bounds POST /components/{id}/refresh?sync=true.
const DefaultRefreshTimeout = 30 * time.Second

func (s *Server) getHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// searchParams mirrors the query string of GET /components.
type searchParams struct {
	Q        string
	Category *string
	InStock  *bool
	MinPrice *string
	MaxPrice *string
	Vendor   *[]string
	Limit    *int
}

func bindSearchParams(r *http.Request) (domain.Query, error) {
	var p searchParams
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "q", query, &p.Q); err != nil {
		return domain.Query{}, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "category", query, &p.Category); err != nil {
		return domain.Query{}, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "inStock", query, &p.InStock); err != nil {
		return domain.Query{}, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "minPrice", query, &p.MinPrice); err != nil {
		return domain.Query{}, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "maxPrice", query, &p.MaxPrice); err != nil {
		return domain.Query{}, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "vendor", query, &p.Vendor); err != nil {
		return domain.Query{}, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &p.Limit); err != nil {
		return domain.Query{}, err
	}

	q := domain.Query{Text: p.Q}
	if p.Category != nil {
		q.Category = *p.Category
	}
	if p.InStock != nil {
		q.Filters.InStock = *p.InStock
	}
	if p.Vendor != nil {
		q.Filters.Vendors = *p.Vendor
	}
	if p.Limit != nil {
		if *p.Limit < 0 {
			return domain.Query{}, fmt.Errorf("limit must not be negative")
		}
		q.Limit = *p.Limit
	}
	lo, err := price("minPrice", p.MinPrice)
	if err != nil {
		return domain.Query{}, err
	}
	hi, err := price("maxPrice", p.MaxPrice)
	if err != nil {
		return domain.Query{}, err
	}
	if lo != nil || hi != nil {
		if lo != nil && hi != nil && lo.GreaterThan(*hi) {
			return domain.Query{}, fmt.Errorf("minPrice is greater than maxPrice")
		}
		q.Filters.PriceRange = &domain.PriceRange{Min: lo, Max: hi}
	}
	return q, nil
}

func price(name string, v *string) (*decimal.Decimal, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(*v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, *v)
	}
	return &d, nil
}

func (s *Server) getComponents(w http.ResponseWriter, r *http.Request) {
	q, err := bindSearchParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	items, err := s.searcher.Search(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if items == nil {
		items = []domain.MergedComponent{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Count: len(items), Items: items})
}

func (s *Server) getComponent(w http.ResponseWriter, r *http.Request) {
	c, err := s.catalog.GetComponent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// postRefresh queues a refresh, or with sync=true runs it before answering.
// A synchronous refresh that fails for some vendors still answers 200 with
// status "partial" and the component as stored.
func (s *Server) postRefresh(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var sync *bool
	var timeout *int
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "sync", query, &sync); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "timeout", query, &timeout); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if sync == nil || !*sync {
		if err := s.refresher.Invalidate(r.Context(), id); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, refreshResponse{ID: id, Status: "queued"})
		return
	}

	d := DefaultRefreshTimeout
	if timeout != nil {
		if *timeout <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("timeout must be positive"))
			return
		}
		d = time.Duration(*timeout) * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), d)
	defer cancel()
	c, err := s.refresher.RefreshNow(ctx, id)
	if err != nil && c.ID == "" {
		s.fail(w, r, err)
		return
	}
	resp := refreshResponse{ID: id, Status: "refreshed", Component: &c}
	if err != nil {
		s.log.WithError(err).WithField("component_id", id).Warn("refresh incomplete")
		resp.Status = "partial"
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.catalog.Categories(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) getVendors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Vendors())
}

// fail maps service errors to status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, search.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, domain.ErrNotFound)
	case errors.Is(err, domain.ErrNoData):
		s.log.WithError(err).WithField("path", r.URL.Path).Warn("no vendor data available")
		writeError(w, http.StatusServiceUnavailable, domain.ErrNoData)
	default:
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"took":       time.Since(start).Round(time.Millisecond),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
