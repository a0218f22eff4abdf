package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-service/internal/api/http/handlers"
	"github.com/spec-kit/support-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireRequester())
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Post("/:id/resolve", cfg.Tickets.ResolveTicket)
	tickets.Post("/:id/reopen", cfg.Tickets.ReopenTicket)

	staff := app.Group("/staff/tickets", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	staff.Get("", cfg.StaffTickets.ListStaffTickets)
	staff.Get("/:id", cfg.StaffTickets.GetStaffTicket)
	staff.Post("/:id/messages", cfg.StaffTickets.AddStaffMessage)
	staff.Post("/:id/assign", cfg.StaffTickets.AssignTicket)
	staff.Post("/:id/resolve", cfg.StaffTickets.ResolveTicket)
}
