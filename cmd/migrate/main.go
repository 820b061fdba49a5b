// Command migrate applies the mysql schema in MIGRATIONS_PATH.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ManuelReschke/productimages/internal/pkg/database"
	"github.com/ManuelReschke/productimages/internal/pkg/env"
)

type command func(m *migrate.Migrate, args []string) error

var commands = map[string]command{
	"up":     up,
	"down":   down,
	"goto":   gotoVersion,
	"status": status,
}

func main() {
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		usage()
	}
	run, ok := commands[os.Args[1]]
	if !ok {
		usage()
	}

	log.Printf("Migrating %s", database.Describe())
	m, err := migrate.New("file://"+env.GetEnv("MIGRATIONS_PATH", "migrations"), "mysql://"+database.DSN(true))
	if err != nil {
		log.Fatalf("Failed to initialize migrations: %v", err)
	}

	err = run(m, os.Args[2:])
	if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
		log.Printf("Failed to close migration resources: %v, %v", srcErr, dbErr)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func up(m *migrate.Migrate, _ []string) error {
	err := m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("No changes: database is up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Println("Migrations applied")
	return nil
}

func down(m *migrate.Migrate, _ []string) error {
	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("failed to roll back the last migration: %w", err)
	}
	log.Println("Rolled back the last migration")
	return nil
}

func gotoVersion(m *migrate.Migrate, args []string) error {
	if len(args) == 0 {
		return errors.New("goto needs a version number")
	}
	version, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version number: %w", err)
	}

	err = m.Migrate(uint(version))
	if errors.Is(err, migrate.ErrNoChange) {
		log.Printf("No changes: database is already at version %d", version)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to migrate to version %d: %w", version, err)
	}
	log.Printf("Migrated to version %d", version)
	return nil
}

func status(m *migrate.Migrate, _ []string) error {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Println("No migrations have been applied yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read the migration version: %w", err)
	}
	suffix := ""
	if dirty {
		suffix = " (dirty)"
	}
	log.Printf("Current migration version: %d%s", version, suffix)
	return nil
}

func usage() {
	fmt.Println("Usage: migrate <command>")
	fmt.Println("  up     - apply all pending migrations")
	fmt.Println("  down   - roll back the last migration")
	fmt.Println("  goto N - migrate to version N")
	fmt.Println("  status - show the current migration version")
	os.Exit(1)
}
