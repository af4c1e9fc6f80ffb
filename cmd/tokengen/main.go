// Command tokengen prints a signed bearer token for local testing.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/clanchat/internal/adapters/auth"
	"github.com/dkeye/clanchat/internal/config"
	"github.com/dkeye/clanchat/internal/domain"
)

func main() {
	id := flag.String("id", "", "user id")
	name := flag.String("name", "", "display name")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	if *id == "" || *name == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	v := auth.NewJWTVerifier(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, TTL: cfg.JWTTTL})
	token, err := v.Issue(domain.UserID(*id), *name)
	if err != nil {
		log.Fatal().Err(err).Msg("sign token")
	}
	fmt.Println(token)
}
