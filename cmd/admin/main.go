package main

import (
	"chatterbox/backend/internal/config"
	"chatterbox/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const defaultRetentionDays = 30

func usage() {
	fmt.Println("Usage: admin <command> [args]")
	fmt.Println("  delete-user <username>   remove an identity")
	fmt.Println("  purge [days]             delete messages older than days (default 30)")
	fmt.Println("  reset-statuses           mark every identity offline")
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect database: %v\n", err)
		os.Exit(1)
	}
	storageSvc := storage.NewStorageService(db, nil) // No redis needed for admin CLI

	if err := run(ctx, storageSvc, os.Args[1:], time.Now()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, store storage.Storage, args []string, now time.Time) error {
	switch args[0] {
	case "delete-user":
		if len(args) != 2 {
			return errors.New("usage: admin delete-user <username>")
		}
		if err := store.DeleteIdentity(ctx, args[1]); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("user %s not found", args[1])
			}
			return fmt.Errorf("delete user: %w", err)
		}
		fmt.Printf("User %s has been deleted.\n", args[1])
	case "purge":
		days := defaultRetentionDays
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return errors.New("invalid days, please provide a positive integer")
			}
			days = n
		}
		cutoff := now.AddDate(0, 0, -days)
		n, err := store.PurgeMessagesOlderThan(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("purge messages: %w", err)
		}
		fmt.Printf("Deleted %d messages older than %s.\n", n, cutoff.Format(time.RFC3339))
	case "reset-statuses":
		n, err := store.ResetStatuses(ctx, now.UTC())
		if err != nil {
			return fmt.Errorf("reset statuses: %w", err)
		}
		fmt.Printf("Marked %d users offline.\n", n)
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}
