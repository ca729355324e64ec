package main

import (
	"context"
	"os"

	"github.com/illmade-knight/go-primefactors/internal/cli"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if err := cli.Execute(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("primefactors failed.")
	}
}
