package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/zenith/internal/api"
	"github.com/zenith/internal/chat"
	"github.com/zenith/internal/config"
	"github.com/zenith/internal/database"
	"github.com/zenith/internal/readcount"
)

// ServeCommand returns the CLI command for starting the API server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the ZENITH API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides config)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			port := cfg.Server.Port
			if c.IsSet("port") {
				port = c.Int("port")
			}

			db, err := database.NewDB(cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			generator, err := chat.NewLangchainGenerator(chat.GeneratorConfig{
				APIKey:  cfg.AI.APIKey,
				BaseURL: cfg.AI.BaseURL,
				Model:   cfg.AI.Model,
			})
			if err != nil {
				return fmt.Errorf("failed to create AI generator: %w", err)
			}

			var reconciler *readcount.Reconciler
			if cfg.Database.URL != "" {
				reconciler, err = readcount.NewReconciler(cfg.Database.URL)
				if err != nil {
					// The server is fully functional without the repair
					// queue; read counts are maintained on the request path.
					log.Warn().Err(err).Msg("Read-count reconciler disabled")
					reconciler = nil
				}
			}

			server := api.NewServer(api.ServerConfig{
				Port:       port,
				JWTSecret:  cfg.Server.JWTSecret,
				DB:         db,
				Generator:  generator,
				RateLimit:  cfg.Chat.RateLimit,
				RateBurst:  cfg.Chat.RateBurst,
				Reconciler: reconciler,
			})
			return server.Start()
		},
	}
}
