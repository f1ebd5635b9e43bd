package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"

	"github.com/iliyamo/ajali/internal/config"
	"github.com/iliyamo/ajali/internal/database"
)

func main() {
	config.LoadDotEnv()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	p := config.LoadDatabase()
	log.Printf("connecting to %s@%s:%s/%s", p.User, p.Host, p.Port, p.Name)

	m, err := database.NewMigrator(p)
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Printf("close migrator: %v, %v", srcErr, dbErr)
		}
	}()

	switch os.Args[1] {
	case "up":
		err := m.Up()
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			log.Println("no change: database is up to date")
		case err != nil:
			log.Fatalf("up: %v", err)
		default:
			log.Println("migrations applied")
		}

	case "down":
		if err := m.Steps(-1); err != nil {
			log.Fatalf("down: %v", err)
		}
		log.Println("rolled back the last migration")

	case "goto":
		if len(os.Args) < 3 {
			log.Fatalf("goto needs a version number")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatalf("invalid version %q: %v", os.Args[2], err)
		}
		err = m.Migrate(uint(version))
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			log.Printf("no change: already at version %d", version)
		case err != nil:
			log.Fatalf("goto %d: %v", version, err)
		default:
			log.Printf("migrated to version %d", version)
		}

	case "force":
		if len(os.Args) < 3 {
			log.Fatalf("force needs a version number")
		}
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			log.Fatalf("invalid version %q: %v", os.Args[2], err)
		}
		if err := m.Force(version); err != nil {
			log.Fatalf("force %d: %v", version, err)
		}
		log.Printf("forced version %d", version)

	case "status", "version":
		version, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			log.Println("no migrations applied yet")
		case err != nil:
			log.Fatalf("version: %v", err)
		case dirty:
			log.Printf("version %d (dirty)", version)
		default:
			log.Printf("version %d", version)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("usage: migrate <command>")
	fmt.Println("commands:")
	fmt.Println("  up          apply all pending migrations")
	fmt.Println("  down        roll back the last migration")
	fmt.Println("  goto N      migrate up or down to version N")
	fmt.Println("  force N     mark version N as applied and clear the dirty flag")
	fmt.Println("  status      print the current version")
}
