package complaint

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/intake/pkg/pagination"
)

// Handler serves the coding ledger.
type Handler struct {
	repo OutcomeRepository
}

func NewHandler(repo OutcomeRepository) *Handler {
	return &Handler{repo: repo}
}

// RegisterRoutes registers ledger routes on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/codings", h.ListCodings)
	api.GET("/codings/:id", h.GetCoding)
}

func (h *Handler) ListCodings(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.repo.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*CodingOutcome{}
	}
	resp := pagination.NewResponse(items, total, pg.Limit, pg.Offset)
	resp.Links = pg.Links(c.Request().URL.Path, total)
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetCoding(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := h.repo.GetByID(c.Request().Context(), id)
	if errors.Is(err, ErrOutcomeNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "coding outcome not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, o)
}
