package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"parkspot/internal/api"
	"parkspot/internal/auth"
	"parkspot/internal/db"
	"parkspot/internal/repository"
	"parkspot/internal/service"
)

func main() {
	godotenv.Load()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	database, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	if err := database.Ping(); err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}

	reservationRepo := repository.NewReservationRepository(database)
	facilityRepo := repository.NewFacilityRepository(database)
	userRepo := repository.NewUserRepository(database)
	jobRepo := repository.NewJobRepository(database)

	sender := service.NewSenderService()
	authSvc := service.NewAuthService(userRepo, sender)
	facilitySvc := service.NewFacilityService(facilityRepo)
	reservationSvc := service.NewReservationService(reservationRepo, facilityRepo)
	jobSvc := service.NewJobService(jobRepo)

	authHandler := api.NewAuthHandler(authSvc)
	reservationHandler := api.NewReservationHandler(reservationSvc, facilitySvc)
	facilityHandler := api.NewFacilityHandler(facilitySvc)

	r := mux.NewRouter()

	// Public endpoints
	r.HandleFunc("/api/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/api/auth/verify-email", authHandler.VerifyEmail).Methods("POST")

	// Authenticated endpoints
	authed := r.PathPrefix("/api").Subrouter()
	authed.Use(auth.Middleware)
	authed.HandleFunc("/reservations/ondemand", reservationHandler.CreateOnDemand).Methods("POST")
	authed.HandleFunc("/reservations/scheduled", reservationHandler.CreateScheduled).Methods("POST")
	authed.HandleFunc("/reservations/checkout", reservationHandler.Checkout).Methods("POST")
	authed.HandleFunc("/reservations/active", reservationHandler.ListActive).Methods("GET")
	authed.HandleFunc("/reservations/{code}", reservationHandler.GetByCode).Methods("GET")
	authed.HandleFunc("/reservations", reservationHandler.ListForDate).Methods("GET")
	authed.HandleFunc("/reservations/{id}", reservationHandler.UpdateReservation).Methods("PUT")
	authed.HandleFunc("/reservations/{id}", reservationHandler.DeleteReservation).Methods("DELETE")
	authed.HandleFunc("/facilities/{id}/availability", reservationHandler.AvailableSpots).Methods("GET")
	authed.HandleFunc("/facilities", facilityHandler.ListFacilities).Methods("GET")
	authed.HandleFunc("/facilities/{id}", facilityHandler.GetFacility).Methods("GET")
	authed.HandleFunc("/facilities/{id}/spots", facilityHandler.ListSpots).Methods("GET")

	// Admin-only inventory management
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(auth.Middleware, auth.RequireRole(db.RoleAdmin))
	admin.HandleFunc("/facilities", facilityHandler.CreateFacility).Methods("POST")
	admin.HandleFunc("/facilities/{id}", facilityHandler.UpdateFacility).Methods("PUT")
	admin.HandleFunc("/facilities/{id}", facilityHandler.DeleteFacility).Methods("DELETE")
	admin.HandleFunc("/spots", facilityHandler.CreateSpot).Methods("POST")
	admin.HandleFunc("/spots/{id}", facilityHandler.UpdateSpot).Methods("PUT")
	admin.HandleFunc("/spots/{id}", facilityHandler.DeleteSpot).Methods("DELETE")

	c := cron.New()
	if _, err := c.AddFunc("@every 10m", func() {
		if err := jobSvc.PurgeExpiredVerificationPins(context.Background()); err != nil {
			log.Printf("Cron Job error: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule pin purge job: %v", err)
	}
	c.Start()
	defer c.Stop()

	handler := handlers.CombinedLoggingHandler(os.Stdout, handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(r))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Server running on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}
