package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/docexam/docexam-backend/internal/config"
	"github.com/docexam/docexam-backend/internal/database"
	"github.com/docexam/docexam-backend/internal/logger"
	"github.com/docexam/docexam-backend/internal/model"
	"github.com/docexam/docexam-backend/internal/repository"
	"github.com/docexam/docexam-backend/internal/service"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	ownerRepo := repository.NewOwnerRepository(pool)
	authService := service.NewAuthService(cfg)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Issue New Owner Access Key ===")

	// Name
	fmt.Print("Enter Owner Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	// Access key, hidden input
	fmt.Print("Enter Access Key: ")
	byteKey, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading access key")
		return
	}
	accessKey := string(byteKey)
	fmt.Println() // Newline after hidden input
	if len(accessKey) < 8 {
		fmt.Println("Error: Access key must be at least 8 characters")
		return
	}

	fmt.Print("Confirm Access Key: ")
	byteConfirm, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading access key")
		return
	}
	fmt.Println()
	if accessKey != string(byteConfirm) {
		fmt.Println("Error: Access keys do not match")
		return
	}

	// ─── Logic ─────────────────────────────────────────────────────────

	hash, err := authService.HashAccessKey(accessKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash access key")
	}

	owner := &model.Owner{
		Name:          name,
		AccessKeyHash: hash,
	}

	if err := ownerRepo.Create(ctx, owner); err != nil {
		log.Fatal().Err(err).Msg("Failed to create owner")
	}

	fmt.Printf("\nSuccess! Owner '%s' created with ID: %d\n", owner.Name, owner.ID)
	fmt.Println("Use this ID together with the access key to request tokens at POST /api/v1/auth/token.")
}
