package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/flowhook/flowhook/pkg/persistence"
	"github.com/flowhook/flowhook/pkg/reconcile"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleReconcileError maps reconciliation outcomes to HTTP responses. A
// partial sync failure is reported with the per-trigger breakdown and the
// webhooks that did come up, since most of the sync usually applied.
func handleReconcileError(c fiber.Ctx, err error, webhooks any) error {
	var syncErr *reconcile.SyncError
	if errors.As(err, &syncErr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"type":            "trigger_sync_failed",
			"workflow_id":     syncErr.WorkflowID,
			"failed_triggers": syncErr.Failures,
			"webhooks":        webhooks,
		})
	}

	if persistence.IsTriggerNotFound(err) || persistence.IsProviderNotFound(err) {
		return notFound(c, err.Error())
	}

	return internalError(c, err)
}
