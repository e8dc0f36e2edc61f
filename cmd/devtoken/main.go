// Command devtoken mints access tokens for local testing against the API.
//
//	devtoken -user 3f1c... -roles admin,user -ttl 1h
//	devtoken -device-secret "a-long-bridge-secret"
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"leaven-service/internal/config"
	"leaven-service/internal/domain/auth"
	"leaven-service/internal/pkg/jwt"
	authUsecase "leaven-service/internal/service/auth"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := run(os.Args[1:], config.Load().JWT, os.Stdout); err != nil {
		log.Fatalf("devtoken: %v", err)
	}
}

func run(args []string, cfg jwt.Config, out io.Writer) error {
	fs := flag.NewFlagSet("devtoken", flag.ContinueOnError)
	fs.SetOutput(out)
	var (
		userID       = fs.String("user", "", "subject (user id) of the token")
		roles        = fs.String("roles", auth.RoleUser, "comma separated roles")
		device       = fs.String("device", "", "optional device label stored in the token")
		ttl          = fs.Duration("ttl", 0, "token lifetime (defaults to JWT_TTL)")
		deviceSecret = fs.String("device-secret", "", "print the bcrypt hash of a device secret instead of minting a token")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *deviceSecret != "" {
		hash, err := authUsecase.HashDeviceSecret(*deviceSecret)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, hash)
		return err
	}

	if *userID == "" {
		return fmt.Errorf("-user is required")
	}

	manager, err := jwt.LoadAndBuild(cfg)
	if err != nil {
		return err
	}

	roleList := splitRoles(*roles)
	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = cfg.TTL
	}

	token, jti, err := manager.Generator.Generate(*userID, roleList, *device, jwt.PurposeAccess, lifetime)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(auth.IssuedToken{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().Add(lifetime).UTC().Truncate(time.Second),
		UserID:      *userID,
		Roles:       roleList,
		JTI:         jti,
	})
}

func splitRoles(s string) []string {
	var roles []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
