// cmd/seed loads demo students and an admin account.
// Usage: go run ./cmd/seed
// Existing students and usernames are left untouched.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/CT14090/meal-plan-verification/internal/config"
	"github.com/CT14090/meal-plan-verification/internal/dto"
	"github.com/CT14090/meal-plan-verification/internal/infra"
	"github.com/CT14090/meal-plan-verification/internal/repository"
	"github.com/CT14090/meal-plan-verification/internal/service"
	"github.com/CT14090/meal-plan-verification/internal/vault"
)

var students = []dto.CreateStudentRequest{
	{StudentID: "10001", CardID: "04A1B2C3", Name: "Ana Torres", GradeLevel: 9, MealPlanType: "Basic"},
	{StudentID: "10002", CardID: "04A1B2C4", Name: "Luis Gomez", GradeLevel: 10, MealPlanType: "Plus"},
	{StudentID: "10003", CardID: "04A1B2C5", Name: "Maria Chen", GradeLevel: 11, MealPlanType: "Premium"},
	{StudentID: "10004", CardID: "04A1B2C6", Name: "David Park", GradeLevel: 12, MealPlanType: "Unlimited"},
	{StudentID: "10005", CardID: "04A1B2C7", Name: "Sofia Rossi", GradeLevel: 7, MealPlanType: "Premium"},
	{StudentID: "10006", CardID: "04A1B2C8", Name: "Omar Haddad", GradeLevel: 8, MealPlanType: "FridayPlus"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("seed: load config")
	}
	v, err := vault.New(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("seed: ENCRYPTION_KEY unusable")
	}
	dsn := cfg.DatabaseURL
	if cfg.DatabaseDriver == "sqlite" {
		dsn = cfg.SQLitePath
	}
	db, err := infra.NewDatabase(infra.DatabaseConfig{Driver: cfg.DatabaseDriver, DSN: dsn})
	if err != nil {
		log.Fatal().Err(err).Msg("seed: open database")
	}

	ctx := context.Background()
	windows, _ := config.ParseMealWindows(cfg.MealWindows)
	admin := service.NewAdminService(db,
		repository.NewStudentRepository(db),
		repository.NewUsageRepository(db),
		repository.NewTransactionRepository(db),
		vault.NewKeyring(v),
		service.NewCalendar(cfg.Location(), windows),
	)
	for _, req := range students {
		_, err := admin.AddStudent(ctx, req)
		switch {
		case errors.Is(err, service.ErrDuplicateStudent):
			fmt.Printf("student %s already present\n", req.StudentID)
		case err != nil:
			log.Fatal().Err(err).Str("student_id", req.StudentID).Msg("seed: add student")
		default:
			fmt.Printf("student %s added (%s)\n", req.StudentID, req.MealPlanType)
		}
	}

	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = "changeme123"
	}
	auth := service.NewAuthService(repository.NewCashierRepository(db), service.AuthConfig{
		JWTSecret:       cfg.JWTSecret,
		ExpirationHours: cfg.JWTExpirationHours,
	})
	_, err = auth.CreateCashier(ctx, dto.CreateCashierRequest{
		Username:    "admin",
		DisplayName: "Cafeteria Admin",
		Password:    password,
		Role:        "admin",
	})
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		fmt.Println("user 'admin' already present")
	case err != nil:
		log.Fatal().Err(err).Msg("seed: create admin")
	default:
		fmt.Printf("user 'admin' created with password '%s'\n", password)
	}
}
