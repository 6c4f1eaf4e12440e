// Package main is a small CLI for minting test credentials against a local
// sayarat instance. It signs with JWT_SECRET, so tokens only work against a
// server started with the same secret.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"sayarat/internal/token"
)

func main() {
	subject := flag.String("subject", "", "Credential subject (user UUID). Generated if empty.")
	role := flag.String("role", "buyer", "Role claim: buyer or admin")
	sessionTTL := flag.Duration("session-ttl", 30*time.Minute, "Hard expiry from now")
	asJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET must be set (at least 32 bytes)")
		os.Exit(1)
	}

	svc, err := token.New(secret, *sessionTTL, *sessionTTL, 720*time.Hour)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sub := *subject
	if sub == "" {
		sub = uuid.NewString()
	}

	signed, err := svc.Issue(context.Background(), sub, *role)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *asJSON {
		out := map[string]string{
			"token":      signed,
			"subject":    sub,
			"role":       *role,
			"expires_in": sessionTTL.String(),
			"usage":      "curl -H 'Authorization: Bearer <token>' ...",
		}
		if err := json.NewEncoder(os.Stdout).Encode(out); err != nil {
			os.Exit(1)
		}
		return
	}
	fmt.Println(signed)
}
