package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"splitbase-backend/config"

	"github.com/golang-jwt/jwt/v5"
)

// Generates a short-lived access token for a given user ID. Handy for
// exercising authenticated endpoints from curl or Postman.
func main() {
	userID := flag.String("user", "", "user ID to put in the sub claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *userID == "" {
		log.Fatalf("Usage: generate_token -user <user-id> [-ttl 24h]")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": *userID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(*ttl).Unix(),
	})

	tokenString, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Printf("Token for user %s (valid %s):\n", *userID, *ttl)
	fmt.Println("-----------------------------------------------")
	fmt.Println(tokenString)
	fmt.Println("-----------------------------------------------")
}
