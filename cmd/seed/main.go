package main

import (
	"context"
	"errors"
	"log"

	"parking/internal/config"
	"parking/internal/database"
	"parking/internal/domain"
	"parking/internal/modules/auth"
	"parking/internal/modules/catalog"
	jwtsvc "parking/internal/pkg/jwt"
	"parking/internal/repository"
)

var (
	layoutRows  = []string{"A", "B", "C", "D", "E", "F"}
	chargerRows = []string{"A", "F"}
)

const spotsPerRow = 10

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	log.Println("Running AutoMigrate...")
	if err := database.Migrate(db); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}

	ctx := context.Background()
	userRepo := repository.NewUserRepository(db)
	spotRepo := repository.NewSpotRepository(db)

	// ================== SPOTS ==================
	log.Println("Creating spots...")
	created, err := catalog.NewService(spotRepo, userRepo).EnsureLayout(ctx, layoutRows, spotsPerRow, chargerRows)
	if err != nil {
		log.Fatalf("spot layout failed: %v", err)
	}
	log.Printf("spots created=%d rows=%v per_row=%d charger_rows=%v", created, layoutRows, spotsPerRow, chargerRows)

	// ================== USERS ==================
	log.Println("Creating users...")
	authService := auth.NewService(userRepo, jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL))

	users := []auth.CreateUserRequest{
		{Email: "secretary@parking.local", Password: "secretary123", FirstName: "Sofia", LastName: "Martin", Role: domain.RoleSecretary},
		{Email: "manager@parking.local", Password: "manager123", FirstName: "Marc", LastName: "Dubois", Role: domain.RoleManager},
		{Email: "alice@parking.local", Password: "employee123", FirstName: "Alice", LastName: "Bernard", Role: domain.RoleEmployee},
		{Email: "bruno@parking.local", Password: "employee123", FirstName: "Bruno", LastName: "Petit", Role: domain.RoleEmployee},
		{Email: "chloe@parking.local", Password: "employee123", FirstName: "Chloe", LastName: "Moreau", Role: domain.RoleEmployee},
	}
	for _, req := range users {
		u, err := authService.CreateUser(ctx, req)
		switch {
		case errors.Is(err, auth.ErrEmailAlreadyExists):
			log.Printf("user exists, skipped: %s", req.Email)
		case err != nil:
			log.Fatalf("create user %s failed: %v", req.Email, err)
		default:
			log.Printf("user created: %s / %s (%s)", u.Email, req.Password, u.Role)
		}
	}

	log.Println("Seed completed")
}
