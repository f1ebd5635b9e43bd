// Command admin manages administrator accounts directly in the database.
//
//	admin create -email a@b.co -username ops -password ... -name "Ops Desk"
//	admin seed -password ...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/iliyamo/ajali/internal/apperr"
	"github.com/iliyamo/ajali/internal/config"
	"github.com/iliyamo/ajali/internal/database"
	"github.com/iliyamo/ajali/internal/repository"
	"github.com/iliyamo/ajali/internal/service"
)

func main() {
	config.LoadDotEnv()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "create":
		fs := flag.NewFlagSet("create", flag.ExitOnError)
		email := fs.String("email", "", "admin email (required)")
		username := fs.String("username", "", "admin username (required)")
		password := fs.String("password", "", "admin password (required)")
		name := fs.String("name", "", "full name (required)")
		phone := fs.String("phone", "", "phone number")
		cost := fs.Int("cost", 12, "bcrypt cost")
		_ = fs.Parse(os.Args[2:])

		run(*cost, func(ctx context.Context, svc *service.IdentityService) error {
			u, err := svc.CreateAdmin(ctx, service.RegisterInput{
				Email: *email, Username: *username, Password: *password, FullName: *name, PhoneNumber: *phone,
			})
			if err != nil {
				return err
			}
			log.Printf("created admin %s (%s)", u.Username, u.ID)
			return nil
		})

	case "seed":
		fs := flag.NewFlagSet("seed", flag.ExitOnError)
		email := fs.String("email", "admin@ajali.co.ke", "admin email")
		username := fs.String("username", "admin", "admin username")
		password := fs.String("password", "", "admin password (required)")
		cost := fs.Int("cost", 12, "bcrypt cost")
		_ = fs.Parse(os.Args[2:])

		run(*cost, func(ctx context.Context, svc *service.IdentityService) error {
			u, created, err := svc.SeedAdmin(ctx, *email, *username, *password)
			if err != nil {
				return err
			}
			if created {
				log.Printf("created admin %s (%s)", u.Username, u.ID)
			} else {
				log.Printf("promoted existing account %s (%s) to admin", u.Username, u.ID)
			}
			return nil
		})

	default:
		usage()
		os.Exit(2)
	}
}

func run(cost int, fn func(ctx context.Context, svc *service.IdentityService) error) {
	db, err := database.Open(config.LoadDatabase())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	svc, err := service.NewIdentityService(repository.NewUserRepo(db), repository.NewTokenRepo(db), nil, cost, nil, nil)
	if err != nil {
		log.Fatalf("identity: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := fn(ctx, svc); err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			for field, msg := range ae.Fields {
				log.Printf("  %s: %s", field, msg)
			}
		}
		log.Fatalf("admin: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <create|seed> [flags]")
	fmt.Fprintln(os.Stderr, "  create -email E -username U -password P -name N [-phone X]")
	fmt.Fprintln(os.Stderr, "  seed   [-email E] [-username U] -password P")
}
