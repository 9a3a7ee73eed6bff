package main

import (
	"log"

	api "pixeltrace/cmd/api"
	accountdomain "pixeltrace/internal/account/domain"
	accountRepo "pixeltrace/internal/account/repository"
	accountUsecase "pixeltrace/internal/account/usecase"
	trackdomain "pixeltrace/internal/track/domain"
	trackRepo "pixeltrace/internal/track/repository"
	trackUsecase "pixeltrace/internal/track/usecase"
	"pixeltrace/pkg/config"
	"pixeltrace/pkg/database"
	"pixeltrace/pkg/fieldcrypt"
	"pixeltrace/pkg/geoip"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&accountdomain.Account{}, &trackdomain.TrackedItem{}, &trackdomain.OpenEvent{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Field-level crypto for PII columns (optional)
	crypter, err := fieldcrypt.New(cfg.FieldCryptKey)
	if err != nil {
		log.Fatal("Failed to initialize field crypto:", err)
	}
	if crypter == nil {
		log.Printf("[WARN] FIELD_CRYPT_KEY not set, metadata stored in plaintext")
	}

	// GeoIP lookup (optional)
	geo, err := geoip.Open(cfg.GeoIPDatabase)
	if err != nil {
		log.Printf("[WARN] Failed to open GeoIP database (locations disabled): %v", err)
	}

	// Initialize repositories (dependency injection)
	accountRepository := accountRepo.NewAccountRepository(db)
	trackRepository := trackRepo.NewTrackRepository(db)

	// Initialize use cases (dependency injection)
	authUsecaseInstance := accountUsecase.NewAuthUsecase(accountRepository, accountUsecase.NewGoogleVerifier(cfg.GoogleClientID), cfg)
	recorder := trackUsecase.NewRecorder(trackRepository, geo, cfg.DebounceWindow)
	resolver := trackUsecase.NewResolver(trackRepository, authUsecaseInstance, crypter)

	// Initialize HTTP handler
	handler := api.NewHandler(authUsecaseInstance, recorder, resolver, cfg)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
