/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, picked up by the logger
  2. RealIP:     Client address behind proxies
  3. Logging:    One zap line per request
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontends

AUTHENTICATION:
  Everything except /api/login and /api/register needs a Bearer JWT.
  Each route group then restricts roles with AllowRoles.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Logging, Authenticate, AllowRoles
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/workforce-billing/billing"
)

// RouterOptions are the transport-level knobs of NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	admin := AllowRoles(billing.RoleAdmin)
	companyOnly := AllowRoles(billing.RoleCompany)
	employeeOnly := AllowRoles(billing.RoleEmployee)
	adminOrCompany := AllowRoles(billing.RoleAdmin, billing.RoleCompany)
	members := AllowRoles(billing.RoleCompany, billing.RoleEmployee)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(h.Accounts.Issuer()))

			r.With(members).Get("/profile", h.Profile)

			// Ledger
			r.Route("/transactions", func(r chi.Router) {
				r.Use(adminOrCompany)
				r.Get("/", h.ListTransactions)
				r.Get("/{id}", h.GetTransaction)
			})

			// Company overview
			r.Route("/companies", func(r chi.Router) {
				r.Use(admin)
				r.Get("/", h.ListCompanies)
				r.Get("/{username}", h.GetCompany)
			})

			// Top-ups
			r.Route("/topup", func(r chi.Router) {
				r.With(adminOrCompany).Get("/", h.ListTopups)
				r.With(companyOnly).Post("/", h.RequestTopup)
				r.With(admin).Put("/{id}", h.ReviewTopup)
			})

			// Schedules
			r.Route("/schedule", func(r chi.Router) {
				r.With(companyOnly).Post("/", h.CreateSchedule)
				r.With(members).Get("/", h.ListSchedules)
				r.With(companyOnly).Delete("/", h.DeleteSchedule)
			})
			r.With(employeeOnly).Put("/attendance", h.MarkAttendance)

			// Roster
			r.Route("/employees", func(r chi.Router) {
				r.With(companyOnly).Get("/", h.ListEmployees)
				r.With(adminOrCompany).Get("/{username}", h.GetEmployee)
				r.With(companyOnly).Put("/{username}", h.RemoveEmployee)
			})
			r.With(companyOnly).Put("/upgrade", h.UpgradePlan)
			r.With(companyOnly).Put("/invitation_code", h.GenerateInvitationCode)

			// Employer
			r.Route("/company", func(r chi.Router) {
				r.Use(employeeOnly)
				r.Post("/", h.JoinCompany)
				r.Get("/", h.GetEmployer)
			})
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, MessageResponse{Message: "ok"})
	})

	return r
}
