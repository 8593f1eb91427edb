package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/TOMBRITO1979/odowell.pro-sub001/libs/auth"
)

// Mints a dev JWT for exercising the API locally.
func main() {
	var (
		sub    = flag.String("sub", getenv("TOKEN_SUB", ""), "subject (user or patient id)")
		clinic = flag.String("clinic-id", getenv("CLINIC_ID", ""), "clinic_id claim")
		role   = flag.String("role", getenv("TOKEN_ROLE", "patient"), "role claim (patient, admin, receptionist)")
		secret = flag.String("secret", getenv("JWT_SECRET", "dev-secret"), "HS256 signing secret")
		ttl    = flag.Duration("ttl", 24*time.Hour, "token lifetime")
	)
	flag.Parse()

	if strings.TrimSpace(*sub) == "" {
		fatal("sub is required")
	}
	if strings.TrimSpace(*clinic) == "" {
		fatal("clinic-id is required")
	}

	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		Sub:      *sub,
		ClinicID: *clinic,
		Role:     *role,
		Iat:      now.Unix(),
		Exp:      now.Add(*ttl).Unix(),
	}, *secret)
	if err != nil {
		fatal(err.Error())
	}
	fmt.Println(token)
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error: "+msg)
	os.Exit(1)
}
