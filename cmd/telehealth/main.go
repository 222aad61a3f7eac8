package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/caremesh/telehealth/internal/adapters/hospital"
	"github.com/caremesh/telehealth/internal/appointment"
	"github.com/caremesh/telehealth/internal/audit"
	demoauth "github.com/caremesh/telehealth/internal/auth"
	"github.com/caremesh/telehealth/internal/authz"
	"github.com/caremesh/telehealth/internal/consent"
	"github.com/caremesh/telehealth/internal/doctor"
	"github.com/caremesh/telehealth/internal/document"
	"github.com/caremesh/telehealth/internal/gateway"
	"github.com/caremesh/telehealth/internal/notification"
	"github.com/caremesh/telehealth/internal/patient"
	"github.com/caremesh/telehealth/internal/principal"
	"github.com/caremesh/telehealth/internal/report"
	"github.com/caremesh/telehealth/internal/shared/auth"
	"github.com/caremesh/telehealth/internal/shared/config"
	"github.com/caremesh/telehealth/internal/shared/database"
	"github.com/caremesh/telehealth/internal/shared/events"
	"github.com/caremesh/telehealth/internal/shared/metrics"
	secmiddleware "github.com/caremesh/telehealth/internal/shared/middleware"
	"github.com/caremesh/telehealth/internal/transport"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    *events.Bus
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}
	mode := gateway.ParseMode(cfg.Gateway.Mode)

	// Database and event bus are optional: without them the server falls
	// back to the static demo surface.
	if mode != gateway.ModeStatic {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			fmt.Printf("Warning: database not available: %v\n", err)
		} else {
			app.DB = db
			defer db.Close()

			if err := database.Migrate(ctx, db.Pool); err != nil {
				fmt.Printf("Warning: migration failed: %v\n", err)
			}
		}

		bus, err := events.NewBus(ctx, cfg.KurrentDB)
		if err != nil {
			fmt.Printf("Warning: KurrentDB not available: %v\n", err)
		} else {
			app.Bus = bus
			defer bus.Close()
		}
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.NewIPRateLimiter(50, 100).Middleware)
	r.Use(secmiddleware.InputSanitizer)
	r.Use(secmiddleware.CORS(secmiddleware.DefaultCORSConfig()))
	r.Use(metrics.Middleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/", infoHandler)

	if app.DB == nil {
		// Static demo surface: canned dataset, no auth, no persistence.
		mountStaticDemo(r)
		serve(cfg, r, "static demo")
		return
	}

	// --- Live wiring ---

	var pub events.Publisher = events.NopPublisher{}
	if app.Bus != nil {
		pub = app.Bus
	}

	evaluator := authz.NewEvaluator(authz.NewPostgresRelationSource(app.DB.Pool))

	// Audit log: KurrentDB stream when the bus is up, Postgres otherwise.
	var auditRepo audit.Repository
	if app.Bus != nil {
		auditRepo = audit.NewKurrentRepository(app.Bus.Client())
	} else {
		auditRepo = audit.NewPostgresRepository(app.DB.Pool)
	}
	if err := auditRepo.Initialize(ctx); err != nil {
		fmt.Printf("Warning: audit initialization failed: %v\n", err)
	}
	if app.Bus != nil {
		subscriber := audit.NewSubscriber(auditRepo, app.Bus)
		if err := subscriber.Start(ctx); err != nil {
			fmt.Printf("Warning: audit subscriber failed to start: %v\n", err)
		}
	}

	// Document blobs: S3 bucket, or in-memory when no bucket is configured.
	var store document.ObjectStore
	if cfg.Storage.Enabled {
		s3store, err := document.NewS3Store(ctx, cfg.Storage)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize object storage: %v\n", err)
			os.Exit(1)
		}
		store = s3store
	} else {
		fmt.Println("Warning: object storage disabled, document bodies are held in memory")
		store = document.NewMemoryStore()
	}

	// Notifications ride the event bus; without it nothing is delivered.
	if app.Bus != nil {
		var provider notification.Provider = &notification.ConsoleProvider{}
		if cfg.Kafka.Enabled {
			kafkaProvider := notification.NewKafkaProvider(cfg.Kafka)
			defer kafkaProvider.Close()
			provider = kafkaProvider
		}
		dispatcher := notification.NewDispatcher(provider, app.Bus)
		if err := dispatcher.Start(ctx); err != nil {
			fmt.Printf("Warning: notification dispatcher failed to start: %v\n", err)
		}
	}

	// Hospital directory: legacy HIS when configured, demo entries otherwise.
	var hospitalSource hospital.Source
	if cfg.Registry.Enabled {
		source, err := hospital.NewMSSQLSource(ctx, cfg.Registry)
		if err != nil {
			fmt.Printf("Warning: hospital registry not available: %v\n", err)
			hospitalSource = &hospital.StaticSource{Entries: demoHospitals()}
		} else {
			defer source.Close()
			hospitalSource = source
		}
	} else {
		hospitalSource = &hospital.StaticSource{Entries: demoHospitals()}
	}
	hospitalRegistry := hospital.NewRegistry(hospitalSource, time.Duration(cfg.Registry.RefreshMinutes)*time.Minute)

	principalRepo := principal.NewRepository(app.DB.Pool)
	doctorRepo := doctor.NewRepository(app.DB.Pool)
	patientRepo := patient.NewRepository(app.DB.Pool)
	appointmentRepo := appointment.NewRepository(app.DB.Pool)
	consentRepo := consent.NewRepository(app.DB.Pool)
	transportRepo := transport.NewRepository(app.DB.Pool)
	documentRepo := document.NewRepository(app.DB.Pool)

	r.Route("/api/v1", func(r chi.Router) {
		// Registration and login are the only unauthenticated endpoints.
		r.Mount("/auth", principal.NewHandler(principalRepo, cfg.Auth, pub).Routes())

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.Auth))

			r.Mount("/doctors", doctor.NewHandler(doctorRepo, evaluator, pub).Routes())
			r.Mount("/patients", patient.NewHandler(patientRepo, evaluator, auditRepo).Routes())
			r.Mount("/appointments", appointment.NewHandler(appointmentRepo, evaluator, pub).Routes())
			r.Mount("/consents", consent.NewHandler(consentRepo, pub).Routes())
			r.Mount("/emergency-transports", transport.NewHandler(transportRepo, evaluator, pub).Routes())
			r.Mount("/documents", document.NewHandler(documentRepo, store, evaluator, pub).Routes())
			r.Mount("/reports", report.NewHandler(appointmentRepo, patientRepo, doctorRepo, documentRepo, store, evaluator, pub).Routes())
			r.Mount("/hospitals", hospital.NewHandler(hospitalRegistry).Routes())
			r.Mount("/audit", audit.NewHandler(auditRepo).Routes())
		})
	})

	serve(cfg, r, "live")
}

// mountStaticDemo mounts the canned dataset behind the gateway client,
// with a file-backed demo session so clients can act as a chosen role.
func mountStaticDemo(r chi.Router) {
	client := gateway.NewClient(gateway.Config{Mode: gateway.ModeStatic})
	sessions := demoauth.NewFileSessionStore(filepath.Join(os.TempDir(), "telehealth-demo-session.json"))

	api := chi.NewRouter()
	api.Mount("/session", demoauth.NewSessionHandler(sessions).Routes())
	api.Mount("/", gateway.NewHandler(client).Routes())

	r.Mount("/api/v1", api)
}

func serve(cfg *config.Config, handler http.Handler, modeLabel string) {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("CareMesh Telehealth Platform")
	fmt.Println("============================================")
	fmt.Printf("Environment:  %s\n", cfg.Server.Env)
	fmt.Printf("Mode:         %s\n", modeLabel)
	fmt.Printf("Server:       http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:          http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:       http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

// demoHospitals backs the directory when no HIS is configured
func demoHospitals() []hospital.Hospital {
	return []hospital.Hospital{
		{ID: "hospital-st-marys", Name: "St. Mary's Medical Center", Address: "450 Stanyan St", City: "San Francisco", Phone: "+1-415-668-1000", Emergency: true},
		{ID: "hospital-general", Name: "General Community Hospital", Address: "1001 Potrero Ave", City: "San Francisco", Phone: "+1-415-206-8000", Emergency: true},
		{ID: "hospital-pacific", Name: "Pacific Heights Clinic", Address: "2333 Buchanan St", City: "San Francisco", Phone: "+1-415-600-3000", Emergency: false},
	}
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "CareMesh Telehealth Platform",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["kurrentdb"] = "not ready: " + err.Error()
			} else {
				checks["kurrentdb"] = "ready"
			}
		} else {
			checks["kurrentdb"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}
