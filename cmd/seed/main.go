// Command seed bootstraps the single superadmin web user a fresh
// deployment needs before anyone can log in at all. Adapted from the
// teacher's cmd/control tenant-bootstrap commands, narrowed to the one
// operation this system actually needs at first boot.
package main

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/routecore/platform/internal/config"
	"github.com/routecore/platform/internal/domain"
	"github.com/routecore/platform/internal/security"
	"github.com/routecore/platform/internal/storage"
)

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if !cfg.SeedSuperAdmin {
		log.Println("SEED_SUPER_ADMIN is not set; nothing to do")
		return
	}

	ctx := context.Background()
	pool, err := storage.NewPool(ctx, storage.PoolConfig{DSN: cfg.DatabaseURL})
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	hasher := security.NewBcryptHasherWithCost(cfg.BcryptCost)

	err = storage.WithSystemTx(ctx, pool, func(tx pgx.Tx) error {
		repo := storage.NewWebUserRepo(tx)

		exists, err := repo.ExistsByUsername(ctx, cfg.SuperAdminUsername)
		if err != nil {
			return err
		}
		if exists {
			log.Printf("superadmin %q already exists, skipping", cfg.SuperAdminUsername)
			return nil
		}

		hash, err := hasher.Hash(cfg.SuperAdminPassword)
		if err != nil {
			return err
		}

		u, err := repo.Create(ctx, domain.WebUser{
			Username:     cfg.SuperAdminUsername,
			PasswordHash: hash,
			Email:        cfg.SuperAdminEmail,
			IsSuperAdmin: true,
		})
		if err != nil {
			return err
		}
		log.Printf("created superadmin %q (id=%s)", u.Username, u.ID)
		return nil
	})
	if err != nil {
		log.Fatalf("seed failed: %v", err)
	}
	os.Exit(0)
}
