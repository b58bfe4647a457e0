package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/unit-inventory/internal/inventory"
	"github.com/iliyamo/unit-inventory/internal/middleware"
	"github.com/iliyamo/unit-inventory/internal/model"
	"github.com/iliyamo/unit-inventory/internal/service"
)

// UnitHandler exposes the inventory service over HTTP.
type UnitHandler struct {
	Svc *service.InventoryService
	log *zap.Logger
}

// NewUnitHandler panics if svc is nil.
func NewUnitHandler(svc *service.InventoryService, log *zap.Logger) *UnitHandler {
	if svc == nil {
		panic("nil service passed to NewUnitHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &UnitHandler{Svc: svc, log: log}
}

func actorFrom(c echo.Context) service.Actor {
	return service.Actor{ID: middleware.StaffID(c), Name: middleware.Name(c), Role: middleware.Role(c)}
}

// List handles GET /v1/units?search=&status=&block=.
func (h *UnitHandler) List(c echo.Context) error {
	f := model.UnitFilters{
		Search: strings.TrimSpace(c.QueryParam("search")),
		Status: strings.ToLower(strings.TrimSpace(c.QueryParam("status"))),
	}
	if raw := strings.TrimSpace(c.QueryParam("block")); raw != "" && raw != "all" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest(c, "block must be a number")
		}
		f.Block = n
	}
	list, err := h.Svc.ListUnits(c.Request().Context(), f)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Get handles GET /v1/units/:id.
func (h *UnitHandler) Get(c echo.Context) error {
	u, fs, err := h.Svc.GetUnit(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"unit": u, "feed": fs})
}

// Stats handles GET /v1/units/stats.
func (h *UnitHandler) Stats(c echo.Context) error {
	st, err := h.Svc.Stats(c.Request().Context())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, st)
}

// BlockStats handles GET /v1/blocks/:block/stats.
func (h *UnitHandler) BlockStats(c echo.Context) error {
	block, err := strconv.Atoi(c.Param("block"))
	if err != nil {
		return badRequest(c, "block must be a number")
	}
	bs, fs, err := h.Svc.BlockStats(c.Request().Context(), block)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"stats": bs, "feed": fs})
}

// Create handles POST /v1/units.
func (h *UnitHandler) Create(c echo.Context) error {
	var in service.CreateUnitInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	u, err := h.Svc.CreateUnit(c.Request().Context(), in, actorFrom(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, u)
}

// Action handles POST /v1/units/:id/actions/:action.  The body is
// optional.
func (h *UnitHandler) Action(c echo.Context) error {
	action, err := inventory.ParseAction(c.Param("action"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	var in service.ActionInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	u, err := h.Svc.ApplyAction(c.Request().Context(), c.Param("id"), action, in, actorFrom(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, u)
}

// Edit handles PATCH /v1/units/:id.
func (h *UnitHandler) Edit(c echo.Context) error {
	var in service.EditInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	u, err := h.Svc.EditUnit(c.Request().Context(), c.Param("id"), in, actorFrom(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, u)
}
