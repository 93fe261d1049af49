// Package web provides the management REST API: trigger sync, workflow
// deployment, provider configuration and webhook listing.
package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/flowhook/flowhook/pkg/models"
	"github.com/flowhook/flowhook/pkg/persistence"
	"github.com/flowhook/flowhook/pkg/provision"
	"github.com/flowhook/flowhook/pkg/reconcile"
	"github.com/flowhook/flowhook/pkg/secrets"
)

type APIHandlers struct {
	persistence persistence.Persistence
	reconciler  *reconcile.Reconciler
	provisioner *provision.Provisioner
	codec       secrets.Codec
	validator   *validator.Validate
}

func NewAPIHandlers(
	persistence persistence.Persistence,
	reconciler *reconcile.Reconciler,
	provisioner *provision.Provisioner,
	codec secrets.Codec,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		persistence: persistence,
		reconciler:  reconciler,
		provisioner: provisioner,
		codec:       codec,
		validator:   validator,
	}
}

// Register mounts all management routes on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)
	app.Post("/workflows/:id/triggers/sync", h.SyncTriggers)
	app.Post("/workflows/:id/deploy", h.DeployWorkflow)
	app.Get("/workflows/:id/webhooks", h.GetWorkflowWebhooks)
	app.Post("/providers", h.CreateProvider)
	app.Delete("/providers/:id", h.DeleteProvider)
	app.Post("/triggers/:id/refresh", h.RefreshTrigger)
}

// SyncTriggers reconciles the workflow's persisted triggers against the
// submitted desired set.
func (h *APIHandlers) SyncTriggers(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req SyncTriggersRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	webhooks, err := h.reconciler.Reconcile(c.Context(), workflowID, req.NamespaceID, req.Triggers)
	if err != nil {
		return handleReconcileError(c, err, webhooks)
	}

	return c.JSON(fiber.Map{
		"workflow_id": workflowID,
		"webhooks":    webhooks,
	})
}

// DeployWorkflow records the submitted trigger set as the workflow's new
// ACTIVE deployment snapshot, then reconciles against it. The snapshot is
// written first so the triggers it names are protected from concurrent
// dev-mode syncs the moment the deployment exists.
func (h *APIHandlers) DeployWorkflow(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req DeployWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	definitions := make([]models.TriggerDefinition, 0, len(req.Triggers))
	for _, meta := range req.Triggers {
		definitions = append(definitions, models.TriggerDefinition{
			Provider:    models.ProviderRef{Type: meta.ProviderType, Alias: meta.ProviderAlias},
			TriggerType: meta.TriggerType,
			Input:       meta.Input,
		})
	}

	deployments := h.persistence.DeploymentRepository()
	if err := deployments.DeactivateAll(c.Context(), workflowID); err != nil {
		return internalError(c, err)
	}

	deployment := &models.WorkflowDeployment{
		ID:                 uuid.NewString(),
		WorkflowID:         workflowID,
		Status:             models.DeploymentStatusActive,
		DeployedAt:         time.Now().UTC(),
		TriggerDefinitions: definitions,
	}
	if err := deployments.Save(c.Context(), deployment); err != nil {
		return internalError(c, err)
	}

	webhooks, err := h.reconciler.Reconcile(c.Context(), workflowID, req.NamespaceID, req.Triggers)
	if err != nil {
		return handleReconcileError(c, err, webhooks)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"deployment_id": deployment.ID,
		"workflow_id":   workflowID,
		"webhooks":      webhooks,
	})
}

// GetWorkflowWebhooks lists the workflow's live webhook endpoints.
func (h *APIHandlers) GetWorkflowWebhooks(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	webhooks, err := h.persistence.WebhookRepository().GetByWorkflow(c.Context(), workflowID)
	if err != nil {
		return internalError(c, err)
	}

	infos := make([]models.WebhookInfo, 0, len(webhooks))

	for _, webhook := range webhooks {
		info := models.WebhookInfo{
			WebhookID: webhook.ID,
			TriggerID: webhook.TriggerID,
			Path:      webhook.Path,
			Method:    webhook.Method,
		}

		if trigger, err := h.persistence.TriggerRepository().GetByID(c.Context(), webhook.TriggerID); err == nil {
			if provider, perr := h.persistence.ProviderRepository().GetByID(c.Context(), trigger.ProviderID); perr == nil {
				info.ProviderType = provider.Type
				info.ProviderAlias = provider.Alias
			}
		}

		infos = append(infos, info)
	}

	return c.JSON(fiber.Map{
		"workflow_id": workflowID,
		"webhooks":    infos,
	})
}

// CreateProvider stores a provider credential, sealing its config with the
// secrets codec.
func (h *APIHandlers) CreateProvider(c fiber.Ctx) error {
	var req CreateProviderRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	encrypted := ""

	if len(req.Config) > 0 {
		plaintext, err := json.Marshal(req.Config)
		if err != nil {
			return internalError(c, err)
		}

		encrypted, err = h.codec.Encrypt(plaintext)
		if err != nil {
			return internalError(c, err)
		}
	}

	provider := &models.Provider{
		ID:              uuid.NewString(),
		NamespaceID:     req.NamespaceID,
		Type:            req.Type,
		Alias:           req.Alias,
		EncryptedConfig: encrypted,
	}

	if err := h.persistence.ProviderRepository().Save(c.Context(), provider); err != nil {
		return internalError(c, err)
	}

	// Config never leaves the API once stored.
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":           provider.ID,
		"namespace_id": provider.NamespaceID,
		"type":         provider.Type,
		"alias":        provider.Alias,
	})
}

func (h *APIHandlers) DeleteProvider(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Provider ID is required")
	}

	if err := h.persistence.ProviderRepository().Delete(c.Context(), id); err != nil {
		if persistence.IsProviderNotFound(err) {
			return notFound(c, "Provider not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RefreshTrigger re-validates or renews the trigger's external
// subscription outside the reconciliation path.
func (h *APIHandlers) RefreshTrigger(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Trigger ID is required")
	}

	trigger, err := h.persistence.TriggerRepository().GetByID(c.Context(), id)
	if err != nil {
		if persistence.IsTriggerNotFound(err) {
			return notFound(c, "Trigger not found")
		}

		return internalError(c, err)
	}

	provider, err := h.persistence.ProviderRepository().GetByID(c.Context(), trigger.ProviderID)
	if err != nil {
		return internalError(c, err)
	}

	state, err := h.provisioner.Refresh(c.Context(), provider, trigger)
	if err != nil {
		return internalError(c, err)
	}

	if err := h.persistence.TriggerRepository().UpdateState(c.Context(), trigger.ID, state); err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"trigger_id": trigger.ID,
		"state":      state,
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Flowhook API is healthy"
	httpStatus := http.StatusOK

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "Flowhook API is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
