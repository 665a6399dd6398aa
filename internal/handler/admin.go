package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CT14090/meal-plan-verification/internal/apierror"
	"github.com/CT14090/meal-plan-verification/internal/dto"
	"github.com/CT14090/meal-plan-verification/internal/model"
	"github.com/CT14090/meal-plan-verification/internal/repository"
	"github.com/CT14090/meal-plan-verification/internal/service"
)

type AdminHandler struct{ svc service.AdminService }

func NewAdminHandler(svc service.AdminService) *AdminHandler { return &AdminHandler{svc: svc} }

// AddStudent godoc
// @Summary      Add a student
// @Description  Encrypts name and card before writing. The daily limit defaults to the plan's limit; -1 is unlimited.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CreateStudentRequest true "Student"
// @Success      201  {object} dto.StudentResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/admin/students [post]
func (h *AdminHandler) AddStudent(c *gin.Context) {
	var req dto.CreateStudentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AddStudent(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// UpdateStudent godoc
// @Summary      Update a student
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                   true "Student id"
// @Param        body body dto.UpdateStudentRequest true "Fields to change"
// @Success      200  {object} dto.StudentResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/admin/students/{id} [put]
func (h *AdminHandler) UpdateStudent(c *gin.Context) {
	var req dto.UpdateStudentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateStudent(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeactivateStudent godoc
// @Summary      Deactivate a student
// @Description  Sets status Inactive. Students are never hard deleted.
// @Tags         admin
// @Security     BearerAuth
// @Param        id path string true "Student id"
// @Success      204
// @Failure      404 {object} apierror.APIError
// @Router       /v1/admin/students/{id} [delete]
func (h *AdminHandler) DeactivateStudent(c *gin.Context) {
	if err := h.svc.DeactivateStudent(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListStudents godoc
// @Summary      List students
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        all query bool false "Include inactive students"
// @Success      200 {object} dto.StudentListResponse
// @Router       /v1/admin/students [get]
func (h *AdminHandler) ListStudents(c *gin.Context) {
	resp, err := h.svc.ListStudents(c.Request.Context(), c.Query("all") == "true")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ExportStudents godoc
// @Summary      Export every student decrypted
// @Description  JSON by default; format=xlsx returns a spreadsheet.
// @Tags         admin
// @Produce      json
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Param        format query string false "json | xlsx"
// @Success      200 {array} dto.StudentResponse
// @Router       /v1/admin/students/export [get]
func (h *AdminHandler) ExportStudents(c *gin.Context) {
	if c.Query("format") == "xlsx" {
		var buf bytes.Buffer
		if err := h.svc.ExportStudentsXLSX(c.Request.Context(), &buf); err != nil {
			writeError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"students_%s.xlsx\"", time.Now().Format("20060102")))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
		return
	}
	resp, err := h.svc.ExportStudents(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListTransactions godoc
// @Summary      Recent transactions
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        date       query string false "Business date YYYY-MM-DD"
// @Param        student_id query string false "Student id"
// @Param        decision   query string false "Approved | Denied"
// @Param        limit      query int    false "Max rows (default 50)"
// @Success      200 {object} dto.TransactionListResponse
// @Router       /v1/admin/transactions [get]
func (h *AdminHandler) ListTransactions(c *gin.Context) {
	f := repository.TransactionFilter{
		StudentID:    c.Query("student_id"),
		BusinessDate: c.Query("date"),
		Decision:     model.Decision(c.Query("decision")),
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("limit must be a number"))
			return
		}
		f.Limit = n
	}
	if f.BusinessDate != "" {
		if _, err := time.Parse("2006-01-02", f.BusinessDate); err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("date must be YYYY-MM-DD"))
			return
		}
	}
	resp, err := h.svc.ListTransactions(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// TodayStats godoc
// @Summary      Today's counts
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.TodayStatsResponse
// @Router       /v1/admin/stats/today [get]
func (h *AdminHandler) TodayStats(c *gin.Context) {
	resp, err := h.svc.GetTodayStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Reset godoc
// @Summary      Reset today
// @Description  Deletes today's transactions and zeroes today's usage. Destructive.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.ResetResponse
// @Router       /v1/admin/reset [post]
func (h *AdminHandler) Reset(c *gin.Context) {
	resp, err := h.svc.TriggerResetNow(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RotateKey godoc
// @Summary      Rotate the encryption key
// @Description  Re-encrypts every student under the new key in one transaction, then uses it for this process. Other stations must restart with the new key.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.RotateKeyRequest true "New key, base64"
// @Success      200  {object} dto.RotateKeyResponse
// @Failure      400  {object} apierror.APIError
// @Router       /v1/admin/rotate-key [post]
func (h *AdminHandler) RotateKey(c *gin.Context) {
	var req dto.RotateKeyRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RotateKey(c.Request.Context(), req.NewKey)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
