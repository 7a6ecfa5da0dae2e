package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/partsform/syncengine/internal/engine"
	"github.com/partsform/syncengine/internal/entity"
	"github.com/partsform/syncengine/internal/feed"
	"github.com/partsform/syncengine/internal/repository"
	"github.com/partsform/syncengine/internal/search"
)

// Handlers implements the control-plane contract (spec.md §6) over one
// already-wired Engine.
type Handlers struct {
	eng *engine.Engine
}

// NewHandlers builds Handlers over eng.
func NewHandlers(eng *engine.Engine) *Handlers {
	return &Handlers{eng: eng}
}

// Health reports the process is up; it does not probe dependencies.
func (h *Handlers) Health(c echo.Context) error {
	return SuccessResponse(c, http.StatusOK, map[string]string{"status": "ok"})
}

func parseIntegrationID(c echo.Context) (entity.IntegrationID, error) {
	return uuid.Parse(c.Param("id"))
}

// CreateIntegration handles POST /integrations.
func (h *Handlers) CreateIntegration(c echo.Context) error {
	var req IntegrationRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	result := validateIntegrationRequest(&req)
	if result.HasErrors() {
		return ValidationErrorResponse(c, result)
	}

	integration := req.toIntegration(entity.UserID{})

	ctx := c.Request().Context()
	if err := h.eng.Integrations.Create(ctx, integration); err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "failed to create integration: "+err.Error())
	}

	if integration.Schedule.Enabled {
		if err := h.eng.Scheduler.Schedule(integration); err != nil {
			h.eng.Log.Errorw("failed to register schedule for new integration", "integration_id", integration.ID, "error", err)
		}
	}
	if integration.Options.AutoSyncOnCreate {
		if err := h.eng.Scheduler.Trigger(ctx, integration.ID); err != nil && !errors.Is(err, entity.ErrAlreadyRunning) {
			h.eng.Log.Errorw("auto-sync on create failed to dispatch", "integration_id", integration.ID, "error", err)
		}
	}

	safe := integration.SafeView()
	return SuccessResponse(c, http.StatusCreated, &safe)
}

// ListIntegrations handles GET /integrations.
func (h *Handlers) ListIntegrations(c echo.Context) error {
	integrations, err := h.eng.Integrations.GetAll(c.Request().Context())
	if err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "failed to list integrations: "+err.Error())
	}
	views := make([]entity.Integration, 0, len(integrations))
	for _, i := range integrations {
		views = append(views, i.SafeView())
	}
	return SuccessResponse(c, http.StatusOK, views)
}

// GetIntegration handles GET /integrations/:id.
func (h *Handlers) GetIntegration(c echo.Context) error {
	id, err := parseIntegrationID(c)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid integration id")
	}
	integration, err := h.eng.Integrations.GetByID(c.Request().Context(), id)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrorResponseWithCode(c, http.StatusNotFound, "NOT_FOUND", "integration not found")
		}
		return ErrorResponse(c, http.StatusInternalServerError, "failed to load integration: "+err.Error())
	}
	safe := integration.SafeView()
	return SuccessResponse(c, http.StatusOK, &safe)
}

// UpdateIntegration handles PUT /integrations/:id.
func (h *Handlers) UpdateIntegration(c echo.Context) error {
	id, err := parseIntegrationID(c)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid integration id")
	}

	var req IntegrationRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	result := validateIntegrationRequest(&req)
	if result.HasErrors() {
		return ValidationErrorResponse(c, result)
	}

	ctx := c.Request().Context()
	integration, err := h.eng.Integrations.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrorResponseWithCode(c, http.StatusNotFound, "NOT_FOUND", "integration not found")
		}
		return ErrorResponse(c, http.StatusInternalServerError, "failed to load integration: "+err.Error())
	}

	req.applyTo(integration, entity.UserID{})
	if err := h.eng.Integrations.Update(ctx, integration); err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "failed to update integration: "+err.Error())
	}

	if err := h.eng.Scheduler.Reschedule(ctx, id); err != nil {
		h.eng.Log.Errorw("failed to reschedule updated integration", "integration_id", id, "error", err)
	}

	safe := integration.SafeView()
	return SuccessResponse(c, http.StatusOK, &safe)
}

// DeleteIntegration handles DELETE /integrations/:id: purges derived
// data (Parts, search documents) before removing the configuration
// itself, per spec.md §3 "delete-and-purge".
func (h *Handlers) DeleteIntegration(c echo.Context) error {
	id, err := parseIntegrationID(c)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid integration id")
	}
	ctx := c.Request().Context()

	h.eng.Scheduler.Stop_(id)

	if _, err := h.eng.Writer.DeleteByIntegration(ctx, id); err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "failed to purge parts: "+err.Error())
	}
	if err := h.eng.Indexer.DeleteByIntegration(ctx, id); err != nil {
		h.eng.Log.Errorw("failed to purge search documents on delete", "integration_id", id, "error", err)
	}
	if err := h.eng.Integrations.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return ErrorResponseWithCode(c, http.StatusNotFound, "NOT_FOUND", "integration not found")
		}
		return ErrorResponse(c, http.StatusInternalServerError, "failed to delete integration: "+err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}

// TriggerSync handles POST /integrations/:id/sync: 202 once dispatched,
// 409 if a run is already in flight (spec.md §6).
func (h *Handlers) TriggerSync(c echo.Context) error {
	id, err := parseIntegrationID(c)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid integration id")
	}
	if err := h.eng.Scheduler.Trigger(c.Request().Context(), id); err != nil {
		if errors.Is(err, entity.ErrAlreadyRunning) {
			return ErrorResponseWithCode(c, http.StatusConflict, "ALREADY_RUNNING", "a sync is already running for this integration")
		}
		return ErrorResponse(c, http.StatusInternalServerError, "failed to dispatch sync: "+err.Error())
	}
	return SuccessResponse(c, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// GetProgress handles GET /integrations/:id/progress.
func (h *Handlers) GetProgress(c echo.Context) error {
	id, err := parseIntegrationID(c)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid integration id")
	}
	progress, ok := h.eng.Progress.Get(id)
	if !ok {
		return ErrorResponseWithCode(c, http.StatusNotFound, "NOT_FOUND", "no progress recorded for this integration")
	}
	return SuccessResponse(c, http.StatusOK, progress)
}

// statusResponse is GET /integrations/:id/status's response shape.
type statusResponse struct {
	IsSyncing bool                     `json:"isSyncing"`
	Status    entity.IntegrationStatus `json:"status"`
	LastSync  *entity.LastSync         `json:"lastSync"`
	Stats     entity.Stats             `json:"stats"`
}

// GetStatus handles GET /integrations/:id/status.
func (h *Handlers) GetStatus(c echo.Context) error {
	id, err := parseIntegrationID(c)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid integration id")
	}
	integration, err := h.eng.Integrations.GetByID(c.Request().Context(), id)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrorResponseWithCode(c, http.StatusNotFound, "NOT_FOUND", "integration not found")
		}
		return ErrorResponse(c, http.StatusInternalServerError, "failed to load integration: "+err.Error())
	}
	return SuccessResponse(c, http.StatusOK, &statusResponse{
		IsSyncing: h.eng.Orchestrator.IsSyncing(id),
		Status:    integration.Status,
		LastSync:  integration.LastSync,
		Stats:     integration.Stats,
	})
}

// TestIntegration handles POST /integrations/test: runs Test() against
// the submitted config without ever persisting it (spec.md §6).
func (h *Handlers) TestIntegration(c echo.Context) error {
	var req IntegrationRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	result := validateIntegrationRequest(&req)
	if result.HasErrors() {
		return ValidationErrorResponse(c, result)
	}

	integration := req.toIntegration(entity.UserID{})
	ctx := c.Request().Context()

	switch integration.Kind {
	case entity.IntegrationKindFTP:
		client, err := feed.NewClient(integration)
		if err != nil {
			return ErrorResponse(c, http.StatusBadRequest, err.Error())
		}
		if err := client.Test(ctx); err != nil {
			return ErrorResponseWithCode(c, http.StatusOK, "UNREACHABLE", err.Error())
		}
	default:
		fetcher, err := feed.NewFetcher(integration)
		if err != nil {
			return ErrorResponse(c, http.StatusBadRequest, err.Error())
		}
		if err := fetcher.Test(ctx); err != nil {
			return ErrorResponseWithCode(c, http.StatusOK, "UNREACHABLE", err.Error())
		}
	}

	return SuccessResponse(c, http.StatusOK, map[string]string{"status": "reachable"})
}

// Search handles the search-read contract: GET /parts/search.
// Falls back to the primary store in degraded mode when the search
// store has no documents yet (spec.md §6).
func (h *Handlers) Search(c echo.Context) error {
	ctx := c.Request().Context()
	params := parseSearchParams(c)

	hasDocs, err := h.eng.Indexer.HasDocuments(ctx)
	if err != nil {
		h.eng.Log.Warnw("hasDocuments check failed, falling back to primary store", "error", err)
		hasDocs = false
	}

	if hasDocs {
		result, err := h.eng.Indexer.Search(ctx, params)
		if err != nil {
			return ErrorResponse(c, http.StatusInternalServerError, "search failed: "+err.Error())
		}
		return SuccessResponse(c, http.StatusOK, result)
	}

	return h.searchPrimaryStore(c, params)
}

func (h *Handlers) searchPrimaryStore(c echo.Context, params search.SearchParams) error {
	filter := repository.PartFilter{
		Query:    params.Query,
		Brand:    params.Brand,
		Supplier: params.Supplier,
		MinPrice: params.MinPrice,
		MaxPrice: params.MaxPrice,
		InStock:  params.InStock,
		Sort:     params.Sort,
		Page:     params.Page,
		Limit:    params.Limit,
	}
	parts, total, err := h.eng.Writer.Search(c.Request().Context(), filter)
	if err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "primary store search failed: "+err.Error())
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	page := params.Page
	if page < 1 {
		page = 1
	}
	totalPages := (total + int64(limit) - 1) / int64(limit)
	if totalPages < 1 {
		totalPages = 1
	}

	return SuccessResponse(c, http.StatusOK, &search.SearchResult{
		Results:    parts,
		Total:      total,
		TotalPages: totalPages,
		HasMore:    int64(page) < totalPages,
		Source:     "primary-store",
	})
}

func parseSearchParams(c echo.Context) search.SearchParams {
	p := search.SearchParams{
		Query:    c.QueryParam("q"),
		Brand:    c.QueryParam("brand"),
		Supplier: c.QueryParam("supplier"),
		Sort:     c.QueryParam("sort"),
	}
	if v, err := strconv.ParseInt(c.QueryParam("minPrice"), 10, 64); err == nil {
		p.MinPrice = &v
	}
	if v, err := strconv.ParseInt(c.QueryParam("maxPrice"), 10, 64); err == nil {
		p.MaxPrice = &v
	}
	if v, err := strconv.ParseBool(c.QueryParam("inStock")); err == nil {
		p.InStock = &v
	}
	if v, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		p.Page = v
	}
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil {
		p.Limit = v
	}
	return p
}
