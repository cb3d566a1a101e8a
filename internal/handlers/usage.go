package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/grovelabs/grove-coder/internal/services"
	"github.com/grovelabs/grove-coder/pkg/response"
)

// UsageHandler serves read-only spend statistics from the ledger.
type UsageHandler struct {
	ledger *services.LedgerService
}

func NewUsageHandler(db *gorm.DB) *UsageHandler {
	return &UsageHandler{
		ledger: services.NewLedgerService(db),
	}
}

// GetReport returns the spend report for a window, optionally filtered to
// one operation kind.
func (h *UsageHandler) GetReport(c *gin.Context) {
	period := c.DefaultQuery("period", "today")

	window, err := services.ParseWindow(period)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	report, err := h.ledger.Report(window, c.Query("tool"))
	if err != nil {
		var invalidErr *services.InvalidWindowError
		if errors.As(err, &invalidErr) {
			response.BadRequest(c, err.Error())
			return
		}
		response.ServerError(c, "failed to build spend report: "+err.Error())
		return
	}

	response.Success(c, report)
}
