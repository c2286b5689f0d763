package terminology

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Handler exposes on-demand ICD-10 lookups over HTTP, mainly so operators
// can check what a given complaint text will code to.
type Handler struct {
	coder  *Coder
	search Searcher
}

// NewHandler creates a new terminology handler.
func NewHandler(coder *Coder, search Searcher) *Handler {
	return &Handler{coder: coder, search: search}
}

// RegisterRoutes registers terminology routes on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/terminology")
	g.GET("/icd10", h.CodeComplaint)
	g.GET("/icd10/$expand", h.ExpandCandidates)
}

// CodeComplaint handles GET /api/v1/terminology/icd10?q=...
// It answers exactly what the consumer loop would record for the same text.
func (h *Handler) CodeComplaint(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter 'q' is required")
	}
	res := h.coder.Code(c.Request().Context(), query)
	switch res.Status() {
	case StatusError:
		return echo.NewHTTPError(http.StatusBadGateway, res.Err.Error())
	case StatusEmpty:
		return echo.NewHTTPError(http.StatusNotFound, "no ICD-10 code found for '"+query+"'")
	}
	return c.JSON(http.StatusOK, res.Candidate)
}

// ExpandCandidates handles GET /api/v1/terminology/icd10/$expand?q=...&count=...
// and returns every candidate in a ValueSet expansion shape.
func (h *Handler) ExpandCandidates(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter 'q' is required")
	}
	count := 100
	if v, err := strconv.Atoi(c.QueryParam("count")); err == nil && v > 0 {
		count = v
	}

	res, err := h.search.SearchICD10(c.Request().Context(), query)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	contains := res.Candidates
	if len(contains) > count {
		contains = contains[:count]
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"resourceType": "ValueSet",
		"expansion": map[string]interface{}{
			"identifier": uuid.New().String(),
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"total":      res.Total,
			"contains":   contains,
		},
	})
}
