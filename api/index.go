package handler

import (
	"fmt"
	"net/http"
	"time"

	"worksphere-backend/pkg/config"
	"worksphere-backend/pkg/database"
	"worksphere-backend/pkg/handlers"
	customMiddleware "worksphere-backend/pkg/middleware"
	"worksphere-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler is the Vercel function entry point. All API endpoints are
// served from a single Chi router so one serverless function hosts the
// whole backend.
func Handler(w http.ResponseWriter, r *http.Request) {
	cfg := config.GetCached()

	if err := cfg.Validate(); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}

	// Pooled connection, reused across warm invocations.
	db := database.GetDatabase(database.DatabaseConfig{
		UseLocalDB:  cfg.UseLocalDB,
		PostgresDSN: cfg.PostgresDSN,
		Debug:       cfg.Debug,
	})

	router := chi.NewRouter()
	setupMiddleware(router, cfg)
	setupRoutes(router, cfg, db)

	router.ServeHTTP(w, r)
}

func setupMiddleware(router *chi.Mux, cfg *config.Config) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.Logger(cfg))
	router.Use(customMiddleware.Recovery(cfg))

	router.Use(customMiddleware.CORS(cfg))

	// Vercel functions are time limited, keep a buffer below the cap
	router.Use(middleware.Timeout(25 * time.Second))

	router.Use(middleware.Compress(5))
	router.Use(customMiddleware.MaxBodySize(1 << 20))

	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

func setupRoutes(router *chi.Mux, cfg *config.Config, db database.DatabaseInterface) {
	authHandler := handlers.NewAuthHandler(cfg, db)
	orgsHandler := handlers.NewOrgsHandler(cfg, db)
	tasksHandler := handlers.NewTasksHandler(cfg, db)
	assignmentsHandler := handlers.NewAssignmentsHandler(cfg, db)
	dependenciesHandler := handlers.NewDependenciesHandler(cfg, db)

	// Health check
	router.Get("/", authHandler.HealthCheck)

	// Connection pool status endpoint for local debugging
	if cfg.IsDevelopment() {
		router.Get("/debug/db-pool", func(w http.ResponseWriter, r *http.Request) {
			utils.WriteSuccessResponse(w, database.GetConnectionStats())
		})
	}

	router.Route("/api", func(r chi.Router) {
		// Public routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.RefreshToken)
			r.Post("/logout", authHandler.Logout)
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuthMiddleware(cfg))
			r.Use(customMiddleware.ContentTypeJSON)

			r.Route("/orgs", func(r chi.Router) {
				r.Get("/", orgsHandler.ListMyOrganizations)
				r.Post("/", orgsHandler.CreateOrganization)
				r.Put("/{id}", orgsHandler.UpdateOrganization)
				r.Get("/members", orgsHandler.ListMembers) // expects ?org_id=
				r.Post("/invite", orgsHandler.InviteMember)
				r.Put("/members/role", orgsHandler.ChangeMemberRole)
				r.Post("/members/deactivate", orgsHandler.DeactivateMember)
				r.Post("/members/reactivate", orgsHandler.ReactivateMember)
			})

			r.Route("/invitations", func(r chi.Router) {
				r.Get("/my", orgsHandler.ListMyInvitations)
				r.Post("/accept", orgsHandler.AcceptInvitation)
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", orgsHandler.ListProjects) // expects ?org_id=
				r.Post("/", orgsHandler.CreateProject)
				r.Put("/{id}", orgsHandler.UpdateProject)
				r.Delete("/{id}", orgsHandler.DeleteProject)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", tasksHandler.ListTasks) // expects ?project_id=
				r.Post("/", tasksHandler.CreateTask)
				r.Get("/{id}", tasksHandler.GetTask)
				r.Put("/{id}", tasksHandler.UpdateTask)
				r.Delete("/{id}", tasksHandler.DeleteTask)
			})

			r.Route("/assignments", func(r chi.Router) {
				r.Post("/validate", assignmentsHandler.ValidateAssignment)
				r.Post("/validate/batch", assignmentsHandler.ValidateAssignmentBatch)
				r.Get("/assignable-members", assignmentsHandler.AssignableMembers) // expects ?org_id=
				r.Post("/assign", assignmentsHandler.Assign)
				r.Get("/my", assignmentsHandler.MyAssignments)
				r.Post("/{taskID}/respond", assignmentsHandler.Respond)
			})

			r.Route("/dependencies", func(r chi.Router) {
				r.Post("/", dependenciesHandler.CreateDependency)
				r.Delete("/{id}", dependenciesHandler.DeleteDependency)
				r.Get("/project/{projectID}", dependenciesHandler.ListProjectDependencies)
				r.Post("/validate", dependenciesHandler.ValidateDependencies)
				r.Post("/import", dependenciesHandler.ImportDependencies)
				r.Get("/visualization", dependenciesHandler.Visualization)    // expects ?project_id=
				r.Get("/critical-path", dependenciesHandler.CriticalPathView) // expects ?project_id=
			})
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}
