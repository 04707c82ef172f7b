// Package api exposes the aggregation engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cohortlens/internal/domain"
	"cohortlens/internal/service/aggregation"
)

const maxBodyBytes = 1 << 20

// AggregationService is the part of aggregation.Service the API calls.
type AggregationService interface {
	GetColumnAggregation(ctx context.Context, req aggregation.ColumnRequest) (*domain.ColumnAggregation, error)
	GetTableAggregations(ctx context.Context, req aggregation.TableRequest) ([]domain.ColumnAggregation, error)
	GetSurvivalCurve(ctx context.Context, req aggregation.SurvivalRequest) ([]domain.SurvivalCurvePoint, error)
	Explain(ctx context.Context, req aggregation.TableRequest) (*aggregation.Plan, error)
}

// DatasetLister lists registered datasets. Optional: without it the dataset
// listing route is not mounted.
type DatasetLister interface {
	ListDatasets(ctx context.Context) ([]domain.Dataset, error)
}

// Handler serves the aggregation routes.
type Handler struct {
	svc      AggregationService
	datasets DatasetLister
	logger   *slog.Logger
}

// NewHandler creates a Handler. datasets may be nil.
func NewHandler(svc AggregationService, datasets DatasetLister, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, datasets: datasets, logger: logger}
}

// aggregationBody is the request body of the aggregation routes. Every field
// is optional.
type aggregationBody struct {
	Filters     domain.FilterExpr `json:"filters"`
	CountBy     *domain.CountBy   `json:"count_by"`
	DisplayType string            `json:"display_type"`
}

type survivalBody struct {
	Filters      domain.FilterExpr `json:"filters"`
	CountBy      *domain.CountBy   `json:"count_by"`
	TimeColumn   string            `json:"time_column"`
	StatusColumn string            `json:"status_column"`
}

// TableAggregationsResponse is returned by the table aggregation route.
type TableAggregationsResponse struct {
	Dataset string                     `json:"dataset"`
	Table   string                     `json:"table"`
	Columns []domain.ColumnAggregation `json:"columns"`
}

// SurvivalResponse is returned by the survival route.
type SurvivalResponse struct {
	Dataset string                      `json:"dataset"`
	Table   string                      `json:"table"`
	Points  []domain.SurvivalCurvePoint `json:"points"`
}

// DatasetInfo is one entry of the dataset listing.
type DatasetInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// decodeBody reads an optional JSON body into dst. An empty body leaves dst
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return ve
		}
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}

func (h *Handler) tableAggregations(w http.ResponseWriter, r *http.Request) {
	var body aggregationBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req := aggregation.TableRequest{
		DatasetID: chi.URLParam(r, "dataset"),
		Table:     chi.URLParam(r, "table"),
		Filter:    body.Filters.Filter,
		CountBy:   body.CountBy,
	}
	cols, err := h.svc.GetTableAggregations(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if cols == nil {
		cols = []domain.ColumnAggregation{}
	}
	writeJSON(w, http.StatusOK, TableAggregationsResponse{Dataset: req.DatasetID, Table: req.Table, Columns: cols})
}

func (h *Handler) columnAggregation(w http.ResponseWriter, r *http.Request) {
	var body aggregationBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	agg, err := h.svc.GetColumnAggregation(r.Context(), aggregation.ColumnRequest{
		DatasetID:   chi.URLParam(r, "dataset"),
		Table:       chi.URLParam(r, "table"),
		Column:      chi.URLParam(r, "column"),
		DisplayType: body.DisplayType,
		Filter:      body.Filters.Filter,
		CountBy:     body.CountBy,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (h *Handler) survival(w http.ResponseWriter, r *http.Request) {
	var body survivalBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if body.TimeColumn == "" || body.StatusColumn == "" {
		writeError(w, r, h.logger, domain.ErrValidation("time_column and status_column are required"))
		return
	}
	req := aggregation.SurvivalRequest{
		DatasetID:    chi.URLParam(r, "dataset"),
		Table:        chi.URLParam(r, "table"),
		TimeColumn:   body.TimeColumn,
		StatusColumn: body.StatusColumn,
		Filter:       body.Filters.Filter,
		CountBy:      body.CountBy,
	}
	points, err := h.svc.GetSurvivalCurve(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if points == nil {
		points = []domain.SurvivalCurvePoint{}
	}
	writeJSON(w, http.StatusOK, SurvivalResponse{Dataset: req.DatasetID, Table: req.Table, Points: points})
}

func (h *Handler) explain(w http.ResponseWriter, r *http.Request) {
	var body aggregationBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	plan, err := h.svc.Explain(r.Context(), aggregation.TableRequest{
		DatasetID: chi.URLParam(r, "dataset"),
		Table:     chi.URLParam(r, "table"),
		Filter:    body.Filters.Filter,
		CountBy:   body.CountBy,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *Handler) listDatasets(w http.ResponseWriter, r *http.Request) {
	list, err := h.datasets.ListDatasets(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]DatasetInfo, len(list))
	for i, ds := range list {
		out[i] = DatasetInfo{ID: ds.ID, Name: ds.Name, Description: ds.Description}
		if !ds.CreatedAt.IsZero() {
			out[i].CreatedAt = ds.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
	}
	writeJSON(w, http.StatusOK, map[string][]DatasetInfo{"datasets": out})
}
