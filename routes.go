package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/AlecsRosa/kondomanager-sub000/config"
	"github.com/AlecsRosa/kondomanager-sub000/models"
	"github.com/AlecsRosa/kondomanager-sub000/models/reports"
	"github.com/AlecsRosa/kondomanager-sub000/utils"
	"github.com/AlecsRosa/kondomanager-sub000/workflow"
	"github.com/gin-gonic/gin"
)

// registerRoutes wires the thin HTTP surface over the billing core. The
// handlers only bind, call one model/workflow operation and map its error;
// all domain rules live below.
func registerRoutes(r *gin.Engine) {

	r.POST("/condominiums", createHandler(models.CreateCondominium))
	r.GET("/condominiums/:id", func(c *gin.Context) {
		condominium, err := models.GetCondominiumById(c.Request.Context(), c.Param("id"))
		respond(c, condominium, err)
	})

	r.POST("/periods", createHandler(models.CreateManagementPeriod))
	r.POST("/periods/:id/close", idActionHandler(models.CloseManagementPeriod))
	r.POST("/periods/:id/prior-balances", importPriorBalancesHandler)

	r.POST("/accounts", createHandler(models.CreateLedgerAccount))
	r.PUT("/accounts/:id", updateAccountHandler)
	r.DELETE("/accounts/:id", idActionHandler(models.DeleteLedgerAccount))
	r.GET("/accounts", func(c *gin.Context) {
		ctx := c.Request.Context()
		condominiumId, ok := utils.GetCondominiumIdFromContext(ctx)
		if !ok || condominiumId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "condominium id is required"})
			return
		}
		accounts, err := models.GetChartOfAccounts(ctx, condominiumId)
		respond(c, accounts, err)
	})

	r.POST("/tables", createHandler(models.CreateWeightingTable))
	r.GET("/tables/:id", idActionHandler(models.GetWeightingTable))
	r.POST("/accounts/:id/tables/:tableId", linkAccountTableHandler)

	r.POST("/units", createHandler(models.CreateUnit))
	r.GET("/units/:id", idActionHandler(models.GetUnit))
	r.POST("/unit-roles", createHandler(models.AssignUnitRole))
	r.DELETE("/unit-roles/:id", func(c *gin.Context) {
		id, err := pathId(c, "id")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		respond(c, gin.H{"id": id}, models.DeactivateUnitRole(c.Request.Context(), id))
	})

	r.POST("/owners", createHandler(models.CreateOwner))
	r.GET("/owners", func(c *gin.Context) {
		owners, err := models.GetOwners(c.Request.Context())
		respond(c, owners, err)
	})

	r.POST("/plans", createHandler(models.CreateExpensePlan))
	r.GET("/plans/:id", idActionHandler(models.GetExpensePlan))
	r.POST("/plans/:id/chapters", addPlanChapterHandler)
	r.POST("/plans/:id/activate", idActionHandler(models.ActivateExpensePlan))
	r.DELETE("/plans/:id", idActionHandler(models.DeleteExpensePlan))
	r.POST("/plans/:id/generate", generateInstallmentsHandler)
	r.GET("/plans/:id/installments", idActionHandler(models.GetPlanInstallments))
	r.GET("/plans/:id/budget-movements", idActionHandler(models.GetBudgetMovements))

	r.GET("/installments/:id", idActionHandler(models.GetInstallment))
	r.POST("/installments/:id/issue", idActionHandler(models.IssueInstallment))
	r.DELETE("/installments/:id", idActionHandler(models.DeleteInstallment))
	r.POST("/payments", createHandler(models.RecordPayment))

	r.POST("/budget-movements", createHandler(models.MoveBudget))

	r.GET("/reports/coverage", func(c *gin.Context) {
		rows, err := reports.GetCoverageReport(c.Request.Context())
		respond(c, rows, err)
	})
	r.GET("/reports/waterfall/:ownerId", func(c *gin.Context) {
		ownerId, err := pathId(c, "ownerId")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid owner id"})
			return
		}
		projection, err := reports.GetOwnerWaterfall(c.Request.Context(), ownerId)
		respond(c, projection, err)
	})

	r.POST("/internal/ops/plan-events/replay", planEventReplayHandler)
}

// createHandler adapts a bind-then-create model operation.
func createHandler[In any, Out any](create func(ctx context.Context, input *In) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input In
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		out, err := create(c.Request.Context(), &input)
		respond(c, out, err)
	}
}

// bindError reports per-field validation failures when the binder produced
// them, a generic message otherwise.
func bindError(c *gin.Context, err error) {
	if fields := utils.ProcessValidationErrors(err); len(fields) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
}

// idActionHandler adapts an operation keyed by a numeric path id.
func idActionHandler[Out any](action func(ctx context.Context, id int) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c, "id")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		out, err := action(c.Request.Context(), id)
		respond(c, out, err)
	}
}

func updateAccountHandler(c *gin.Context) {
	id, err := pathId(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var input models.NewLedgerAccount
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	account, err := models.UpdateLedgerAccount(c.Request.Context(), id, &input)
	respond(c, account, err)
}

func linkAccountTableHandler(c *gin.Context) {
	accountId, err := pathId(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}
	tableId, err := pathId(c, "tableId")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid table id"})
		return
	}
	link, err := models.LinkAccountTable(c.Request.Context(), accountId, tableId)
	respond(c, link, err)
}

type newPlanChapterRequest struct {
	AccountId      int    `json:"account_id" binding:"required"`
	OverrideAmount *int64 `json:"override_amount"`
}

func addPlanChapterHandler(c *gin.Context) {
	planId, err := pathId(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}
	var req newPlanChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	chapter, err := models.AddPlanChapter(c.Request.Context(), planId, req.AccountId, req.OverrideAmount)
	respond(c, chapter, err)
}

func importPriorBalancesHandler(c *gin.Context) {
	periodId, err := pathId(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid period id"})
		return
	}
	var entries []models.NewPriorBalance
	if err := c.ShouldBindJSON(&entries); err != nil {
		bindError(c, err)
		return
	}
	balances, err := models.ImportPriorBalances(c.Request.Context(), periodId, entries)
	respond(c, balances, err)
}

func generateInstallmentsHandler(c *gin.Context) {
	planId, err := pathId(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}
	result, err := workflow.GenerateInstallments(c.Request.Context(), planId)
	if err != nil {
		respond(c, nil, err)
		return
	}
	if result.Blocked {
		// domain guard, not an error: nothing changed
		c.JSON(http.StatusConflict, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

type planEventReplayRequest struct {
	EventId int `json:"event_id" binding:"required"`
}

// planEventReplayHandler requeues a DEAD or FAILED plan event for the
// dispatcher.
func planEventReplayHandler(c *gin.Context) {
	var req planEventReplayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	db := config.GetDB()
	now := time.Now().UTC()
	result := db.WithContext(c.Request.Context()).
		Model(&models.PlanEvent{}).
		Where("id = ? AND publish_status IN ?", req.EventId,
			[]string{models.OutboxPublishStatusFailed, models.OutboxPublishStatusDead}).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusFailed,
			"next_attempt_at":    &now,
			"publish_attempts":   0,
			"locked_at":          nil,
			"locked_by":          nil,
			"last_publish_error": nil,
		})
	if result.Error != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found or not replayable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"event_id":        req.EventId,
		"publish_status":  models.OutboxPublishStatusFailed,
		"next_attempt_at": now.Format(time.RFC3339Nano),
	})
}

func pathId(c *gin.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// respond maps the core's error taxonomy: missing records to 404, domain
// and validation errors to 400.
func respond(c *gin.Context, body any, err error) {
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, body)
}
