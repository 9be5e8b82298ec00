package main

import (
	"fmt"
	"log"
	"os"

	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/pkg/auth"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/generate_password.go <password>")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Error loading config:", err)
	}
	passwords := auth.NewPasswordManager(cfg)

	password := os.Args[1]
	if err := passwords.ValidatePassword(password); err != nil {
		log.Fatal("Password rejected:", err)
	}

	hash, err := passwords.HashPassword(password)
	if err != nil {
		log.Fatal("Error generating hash:", err)
	}

	fmt.Printf("Cost: %d\n", cfg.Security.BcryptCost)
	fmt.Printf("Hash: %s\n", hash)

	if err := passwords.VerifyPassword(password, hash); err != nil {
		log.Fatal("Hash verification failed:", err)
	}

	fmt.Println("Hash verified")
}
