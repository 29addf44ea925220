package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"

	"github.com/worldcoin/world-chat-backend-sub000/internal/config"
	"github.com/worldcoin/world-chat-backend-sub000/internal/errs"
	"github.com/worldcoin/world-chat-backend-sub000/internal/logger"
	"github.com/worldcoin/world-chat-backend-sub000/internal/types/validate"
)

const appName = "attest-verify"

var errFailedToParse = errors.New("failed to parse flags")

func parseFlags(out io.Writer, args []string) (_ *config.Verify, err error) {
	defer errs.WrapErr(&err, errFailedToParse)

	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(out)

	addr := fs.String(
		"addr",
		"",
		"address of the enclave service, e.g.: http://127.0.0.1:8080",
	)
	doc := fs.String(
		"doc",
		"",
		"Base64-encoded attestation document to verify instead of fetching one",
	)
	measurements := fs.String(
		"measurements",
		"",
		"file containing the JSON measurements emitted by 'nitro-cli build-enclave'",
	)
	roots := fs.String(
		"roots",
		"",
		"PEM file with the root certificates to trust instead of the AWS Nitro root",
	)
	verbose := fs.Bool(
		"verbose",
		false,
		"print details about the attestation document",
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &config.Verify{
		Addr:         *addr,
		Doc:          *doc,
		Measurements: *measurements,
		Roots:        *roots,
		Verbose:      *verbose,
	}
	if err := validate.Object(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, out io.Writer, args []string) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	cfg, err := parseFlags(out, args)
	if err != nil {
		return err
	}
	return attestEnclave(ctx, out, cfg)
}

func main() {
	log.Logger = logger.Default(appName, os.Stderr)
	if err := run(context.Background(), os.Stdout, os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("Failed to run verifier.")
	}
}
