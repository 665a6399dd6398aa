// cmd/rotatekey re-encrypts every student under a new key while the
// stations are stopped.
// Usage: ENCRYPTION_KEY=<old> go run ./cmd/rotatekey -new <key>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/CT14090/meal-plan-verification/internal/config"
	"github.com/CT14090/meal-plan-verification/internal/infra"
	"github.com/CT14090/meal-plan-verification/internal/repository"
	"github.com/CT14090/meal-plan-verification/internal/service"
	"github.com/CT14090/meal-plan-verification/internal/vault"
)

func main() {
	newKey := flag.String("new", "", "replacement ENCRYPTION_KEY (base64, 32 bytes)")
	flag.Parse()
	if *newKey == "" {
		fmt.Fprintln(os.Stderr, "usage: rotatekey -new <key>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("rotatekey: load config")
	}
	from, err := vault.New(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("rotatekey: current key unusable")
	}
	to, err := vault.New(*newKey)
	if err != nil {
		log.Fatal().Err(err).Msg("rotatekey: new key unusable")
	}

	dsn := cfg.DatabaseURL
	if cfg.DatabaseDriver == "sqlite" {
		dsn = cfg.SQLitePath
	}
	db, err := infra.NewDatabase(infra.DatabaseConfig{Driver: cfg.DatabaseDriver, DSN: dsn})
	if err != nil {
		log.Fatal().Err(err).Msg("rotatekey: open database")
	}

	n, err := service.RotateStudents(context.Background(), db, repository.NewStudentRepository(db), from, to)
	if err != nil {
		log.Fatal().Err(err).Msg("rotatekey: rotation aborted, nothing changed")
	}
	fmt.Printf("%d students re-encrypted; set ENCRYPTION_KEY to the new key on every station\n", n)
}
