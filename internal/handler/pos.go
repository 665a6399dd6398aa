package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CT14090/meal-plan-verification/internal/apierror"
	"github.com/CT14090/meal-plan-verification/internal/bridge"
)

// POSHandler serves the point-of-sale terminal's view of a station.
type POSHandler struct{ bridge *bridge.Bridge }

func NewPOSHandler(b *bridge.Bridge) *POSHandler { return &POSHandler{bridge: b} }

// Lookup godoc
// @Summary      Read the station's lookup slot
// @Description  Returns the last resolved student for the station. Reading does not clear it; slots older than the display timeout are absent.
// @Tags         pos
// @Produce      json
// @Param        station path string true "Station id"
// @Success      200 {object} bridge.Slot
// @Failure      404 {object} apierror.APIError
// @Router       /v1/pos/{station}/lookup [get]
func (h *POSHandler) Lookup(c *gin.Context) {
	slot, ok := h.bridge.Consume(c.Param("station"))
	if !ok {
		c.JSON(http.StatusNotFound, apierror.New("no student on this station"))
		return
	}
	c.JSON(http.StatusOK, slot)
}

// Clear godoc
// @Summary      Clear the station's lookup slot
// @Tags         pos
// @Param        station path string true "Station id"
// @Success      204
// @Router       /v1/pos/{station}/lookup [delete]
func (h *POSHandler) Clear(c *gin.Context) {
	h.bridge.Clear(c.Param("station"))
	c.Status(http.StatusNoContent)
}
