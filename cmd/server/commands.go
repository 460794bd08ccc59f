package main

import (
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "gophauth",
		Short:        "Credential-issuance service: registration, token pairs, rotation and revocation",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newKeysCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve [-c config.json|yaml] [-env-file .env] [-a addr] [-d dsn] [-u backend] [-k backend] [-r redis] [-i issuer] [-t ttl] [-x ttl] [-l level]",
		Short: "Run the HTTP API until interrupted",
		// Flags are handled by the config layer so that file, env and flag
		// settings share one set of names.
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(args)
			if err != nil {
				return err
			}

			logger := logging.NewJSON(os.Stdout, cfg.LogLevel)

			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			bus := events.NewBus()
			bus.Subscribe(events.LogObserver(logger))
			counter, err := events.MetricsObserver(registry)
			if err != nil {
				return err
			}
			bus.Subscribe(counter)

			app, err := server.NewApp(cfg, server.Options{
				Bus:           bus,
				Logger:        logger,
				Registry:      registry,
				HandleSignals: true,
			})
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}

func newKeysCmd() *cobra.Command {
	var bits int
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Generate RS256 key pairs for access and refresh tokens in env file format",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, prefix := range []string{"ACCESS", "REFRESH"} {
				priv, pub, err := auth.GenerateKeyPair(bits)
				if err != nil {
					return fmt.Errorf("generate %s key: %w", prefix, err)
				}
				fmt.Fprintf(out, "%s_TOKEN_KEY=\"%s\"\n", prefix, auth.EscapePEM(priv))
				fmt.Fprintf(out, "%s_TOKEN_PUBLIC_KEY=\"%s\"\n", prefix, auth.EscapePEM(pub))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&bits, "bits", auth.DefaultKeyBits, "RSA modulus size")
	return cmd
}
