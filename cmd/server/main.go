package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"smooshr/backend/internal/api"
	"smooshr/backend/internal/auth"
	"smooshr/backend/internal/config"
	"smooshr/backend/internal/logging"
	"smooshr/backend/internal/mcp"
	"smooshr/backend/internal/metrics"
	"smooshr/backend/internal/repository"
	"smooshr/backend/internal/runner"
	"smooshr/backend/internal/services"
	"smooshr/backend/internal/tls"
)

func main() {
	ctx := context.Background()

	configFile := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Configuration loading failed: %v", err)
	}

	logger := logging.NewLogger(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	defer logger.Sync()

	logger.Info("Configuration loaded",
		"environment", cfg.Environment,
		"db_driver", cfg.DB.Driver,
		"issuer", cfg.Auth.Issuer,
		"client_id", cfg.Auth.ClientID,
		"secret_len", len(cfg.Auth.ClientSecret),
		"swagger_client_id", cfg.Auth.SwaggerClientID,
		"auth_bypass", cfg.AuthBypassed(),
	)
	if cfg.Auth.SwaggerClientID == cfg.Auth.ClientID && cfg.Auth.ClientSecret != "" {
		logger.Warn("Swagger client ID matches the backend client ID; PKCE logins from /docs fail if the backend client requires a secret")
	}

	metrics.Init()

	repo, err := repository.Open(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("Database connected", "driver", cfg.DB.Driver)

	workflowService, err := services.NewWorkflowService(repo,
		runner.New(runner.Options{ImplicitBaseline: cfg.Run.ImplicitBaselineValidation}), logger)
	if err != nil {
		logger.Error("Failed to initialize workflow service", "error", err)
		os.Exit(1)
	}
	userService := services.NewUserService(repo, logger)
	apiKeyService := services.NewAPIKeyService(repo, logger)
	logger.Info("Service layer initialized")

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.NewHTTPErrorHandler(logger)

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("smooshr"))

	authz, err := auth.New(ctx, cfg, userService, apiKeyService, logger)
	if err != nil {
		logger.Error("Failed to initialize auth", "error", err)
		os.Exit(1)
	}

	e.GET("/login", echo.WrapHandler(http.HandlerFunc(authz.LoginHandler)))
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(authz.CallbackHandler)))
	e.GET("/logout", echo.WrapHandler(http.HandlerFunc(authz.LogoutHandler)))

	e.GET("/health", api.HealthHandler(repo))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	apiGroup := e.Group("/api")
	apiGroup.Use(echo.WrapMiddleware(authz.RequireAuth))
	api.RegisterHandlers(apiGroup, api.NewServer(workflowService, apiKeyService, cfg.Run.MaxUploadBytes))
	logger.Info("REST API handlers mounted")

	mcpServer := mcp.NewServer(workflowService, api.Version, logger)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	requireAuth := echo.WrapMiddleware(authz.RequireAuth)
	e.Any("/mcp", echo.WrapHandler(mcpHandlers), requireAuth)
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers), requireAuth)
	logger.Info("MCP protocol handlers mounted")

	e.GET("/openapi.yaml", api.SpecHandler(cfg.Auth.Issuer))
	e.GET("/docs", api.SwaggerHandler(cfg.Auth.SwaggerClientID))
	e.GET("/docs/oauth2-redirect.html", api.OAuth2RedirectHandler)

	if cfg.TLS.Enable {
		generated, err := tls.EnsureCertificate(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
		if err != nil {
			logger.Error("TLS certificate unavailable", "error", err)
			os.Exit(1)
		}
		if generated {
			logger.Warn("Generated a self-signed certificate", "cert_file", cfg.TLS.CertFile, "hostnames", cfg.TLS.Hostnames)
		}
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", server.Addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			return
		}
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}

		logger.Info("Server stopped gracefully")
	}
}
