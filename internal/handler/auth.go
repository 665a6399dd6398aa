package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CT14090/meal-plan-verification/internal/dto"
	"github.com/CT14090/meal-plan-verification/internal/service"
)

type AuthHandler struct{ svc service.AuthService }

func NewAuthHandler(svc service.AuthService) *AuthHandler { return &AuthHandler{svc: svc} }

// Login godoc
// @Summary Cashier login
// @Tags auth
// @Accept json
// @Produce json
// @Param body body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.LoginResponse
// @Failure 401 {object} apierror.APIError
// @Router /v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ── Cashier accounts ──────────────────────────────────────────────────────────

// CreateCashier godoc
// @Summary Create a cashier account
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CreateCashierRequest true "Account"
// @Success 201 {object} dto.CashierResponse
// @Router /v1/admin/cashiers [post]
func (h *AuthHandler) CreateCashier(c *gin.Context) {
	var req dto.CreateCashierRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateCashier(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListCashiers godoc
// @Summary List active cashier accounts
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.CashierResponse
// @Router /v1/admin/cashiers [get]
func (h *AuthHandler) ListCashiers(c *gin.Context) {
	resp, err := h.svc.ListCashiers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
