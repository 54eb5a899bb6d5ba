// Command seedadmin creates or updates an administrator account so a fresh
// deployment has someone who can triage imagery requests.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/orbitalworks/imagery-api/pkg/config"
	"github.com/orbitalworks/imagery-api/pkg/database"
)

func main() {
	var (
		email    string
		password string
		fullName string
	)

	flag.StringVar(&email, "email", "", "Admin email address")
	flag.StringVar(&password, "password", "", "Admin password")
	flag.StringVar(&fullName, "name", "Administrator", "Admin full name")
	flag.Parse()

	if email == "" || password == "" {
		log.Fatal("both -email and -password are required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const query = `INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
		VALUES ($1, LOWER($2), $3, $4, 'ADMIN', TRUE, $5, $5)
		ON CONFLICT (email) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			full_name = EXCLUDED.full_name,
			role = 'ADMIN',
			active = TRUE,
			updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	if _, err := db.ExecContext(ctx, query, uuid.NewString(), email, string(hash), fullName, now); err != nil {
		log.Fatalf("failed to upsert admin account: %v", err)
	}

	log.Printf("admin account ready: %s", email)
}
