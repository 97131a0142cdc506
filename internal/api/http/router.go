package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civicstack/form-engine/internal/api/http/handlers"
	"github.com/civicstack/form-engine/internal/auth"
	"github.com/civicstack/form-engine/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Forms          *handlers.FormsHandler
	Submissions    *handlers.SubmissionsHandler
	Operators      *handlers.OperatorsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/operators/login", cfg.Operators.Login)

	// public intake: form settings decide whether auth is required
	app.Post("/forms/:id/submissions", cfg.AuthMiddleware.Optional, cfg.Submissions.CreateSubmission)
	app.Get("/forms/:id", cfg.AuthMiddleware.Optional, cfg.Forms.GetForm)

	operator := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireOperator())
	operator.Get("/forms", cfg.Forms.ListForms)
	operator.Get("/submissions", cfg.Submissions.ListSubmissions)
	operator.Get("/submissions/:id", cfg.Submissions.GetSubmission)
	operator.Get("/submissions/:id/history", cfg.Submissions.History)
	operator.Post("/submissions/:id/transition", cfg.Submissions.Transition)
	operator.Post("/submissions/:id/assign", cfg.Submissions.Assign)

	admin := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireOperatorRole(domain.OperatorRoleAdmin))
	admin.Post("/forms", cfg.Forms.CreateForm)
	admin.Put("/forms/:id", cfg.Forms.UpdateForm)
	admin.Post("/forms/:id/deactivate", cfg.Forms.DeactivateForm)
	admin.Put("/sla-configs/:category", cfg.Forms.UpsertSLAConfig)
	admin.Get("/sla-configs/:category", cfg.Forms.GetSLAConfig)
}
