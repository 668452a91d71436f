package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/akademos/academy-api/pkg/config"
	"github.com/akademos/academy-api/pkg/database"
)

// Bootstraps the first ADMIN account so the API can be used right after a
// fresh deployment. Safe to re-run: an existing account with the same email
// gets its password and role refreshed instead of failing.
func main() {
	var (
		email    string
		password string
		fullName string
		timeout  time.Duration
	)

	flag.StringVar(&email, "email", "admin@academy.local", "admin account email")
	flag.StringVar(&password, "password", "", "admin account password (required)")
	flag.StringVar(&fullName, "name", "Academy Administrator", "admin full name")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "database operation timeout")
	flag.Parse()

	if password == "" {
		log.Fatal("missing required flag: -password")
	}
	if len(password) < 8 {
		log.Fatal("password must be at least 8 characters")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	now := time.Now().UTC()
	const query = `INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, 'ADMIN', TRUE, $5, $5)
        ON CONFLICT (email) DO UPDATE
        SET password_hash = EXCLUDED.password_hash, role = 'ADMIN', active = TRUE, updated_at = EXCLUDED.updated_at`
	if _, err := db.ExecContext(ctx, query, uuid.NewString(), email, string(hash), fullName, now); err != nil {
		log.Fatalf("failed to seed admin account: %v", err)
	}

	fmt.Printf("admin account ready: %s\n", email)
}
