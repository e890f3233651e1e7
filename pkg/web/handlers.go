// Package web provides the operational HTTP API: workflow inspection and
// validation, execution history, delay state, and cancellation.
package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/relaykit/journey/pkg/engine"
	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/persistence"
	"github.com/relaykit/journey/pkg/registry"
)

type APIHandlers struct {
	persistence persistence.Persistence
	coordinator *engine.Coordinator
	registry    *registry.Registry
	validator   *validator.Validate
}

func NewAPIHandlers(p persistence.Persistence, coordinator *engine.Coordinator, reg *registry.Registry, validate *validator.Validate) *APIHandlers {
	return &APIHandlers{
		persistence: p,
		coordinator: coordinator,
		registry:    reg,
		validator:   validate,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status":     "healthy",
		"node_types": h.registry.NodeTypes(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.persistence.Workflows().ListPublished(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.persistence.Workflows().GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, persistence.ErrWorkflowNotFound) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(workflow)
}

// CreateWorkflow seeds a workflow definition. Authoring happens elsewhere;
// this endpoint exists for bootstrapping and test environments.
func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var workflow models.Workflow

	err := c.Bind().Body(&workflow)
	if err != nil {
		return badRequest(c, "Invalid workflow payload: "+err.Error())
	}

	err = h.validator.Struct(&workflow)
	if err != nil {
		return badRequest(c, "Workflow failed validation: "+err.Error())
	}

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = time.Now().UTC()
	}

	err = h.persistence.Workflows().Save(c.Context(), &workflow)
	if err != nil {
		return internalError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(workflow)
}

// ValidateWorkflow statically checks a workflow's rule tree against the
// registered executors.
func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.persistence.Workflows().GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, persistence.ErrWorkflowNotFound) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	result := engine.ValidateRuleTree(workflow.RuleNode(), h.registry)

	return c.JSON(result)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	opts := persistence.ListExecutionsOptions{
		WorkflowID: c.Query("workflow_id"),
		Status:     models.ExecutionStatus(c.Query("status")),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit: "+err.Error())
		}

		opts.Limit = limit
	}

	if sinceStr := c.Query("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			return badRequest(c, "Invalid since timestamp: "+err.Error())
		}

		opts.Since = since
	}

	records, err := h.persistence.Executions().List(c.Context(), opts)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"executions": records})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	record, err := h.persistence.Executions().GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, persistence.ErrExecutionNotFound) {
			return notFound(c, "Execution not found")
		}

		return internalError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) GetExecutionDelays(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	delays, err := h.persistence.Delays().ListByExecution(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"delays": delays})
}

type cancelRequest struct {
	Reason      string `json:"reason"`
	CancelledBy string `json:"cancelled_by"`
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req cancelRequest

	_ = c.Bind().Body(&req)

	err := h.coordinator.Cancel(c.Context(), id, req.Reason, req.CancelledBy)
	if err != nil {
		if errors.Is(err, persistence.ErrExecutionNotFound) {
			return notFound(c, "Execution not found")
		}

		return conflict(c, err.Error())
	}

	return c.JSON(fiber.Map{"cancelled": true})
}
