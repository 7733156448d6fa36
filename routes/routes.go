package routes

import (
	"net/http"

	"user-service/config"
	"user-service/handlers"
	"user-service/middleware"
	"user-service/models"
	"user-service/store"

	"github.com/gorilla/mux"
)

func SetupRoutes(
	cfg config.Config,
	tokenStore store.TokenStore,
	userHandler *handlers.UserHandler,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RequestID, middleware.RequestLogger)
	router.NotFoundHandler = middleware.RequestID(http.HandlerFunc(notFound))
	router.MethodNotAllowedHandler = middleware.RequestID(http.HandlerFunc(methodNotAllowed))

	api := router.PathPrefix("/api").Subrouter()

	users := api.PathPrefix("/users").Subrouter()
	users.Handle("", middleware.ErrorHandler(userHandler.CreateUser)).Methods(http.MethodPost)
	users.Handle("", middleware.ErrorHandler(userHandler.ListUsers)).Methods(http.MethodGet)
	users.Handle("/{id}", middleware.ErrorHandler(userHandler.GetUser)).Methods(http.MethodGet)
	users.Handle("/{id}", middleware.ErrorHandler(userHandler.UpdateUser)).Methods(http.MethodPut)
	users.Handle("/{id}", middleware.ErrorHandler(userHandler.DeleteUser)).Methods(http.MethodDelete)

	auth := api.PathPrefix("/auth").Subrouter()
	auth.Handle("/register", middleware.ErrorHandler(authHandler.Register)).Methods(http.MethodPost)
	auth.Handle("/login", middleware.ErrorHandler(authHandler.Login)).Methods(http.MethodPost)
	auth.Handle("/logout", middleware.ErrorHandler(authHandler.Logout)).Methods(http.MethodPost)
	auth.Handle("/me", middleware.AuthMiddleware(cfg, tokenStore)(middleware.ErrorHandler(authHandler.Me))).Methods(http.MethodGet)

	api.Handle("/health", middleware.ErrorHandler(healthHandler.Health)).Methods(http.MethodGet)

	return router
}

func notFound(w http.ResponseWriter, r *http.Request) {
	middleware.WriteError(w, http.StatusNotFound, "Resource not found", models.ErrCodeNotFound)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed", models.ErrCodeMethodNotAllowed)
}
