package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kyamashita/honyaku/internal/config"
	"github.com/kyamashita/honyaku/internal/home"
	"github.com/kyamashita/honyaku/internal/server"
)

var (
	serveHost   string
	servePort   string
	serveOllama bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the honyaku server",
	Long: `Start the honyaku HTTP server.

Jobs run inside the server process; translated Markdown and intermediate
artifacts are written under the honyaku home directory. If ollama.managed
is set in the config, the Ollama container is started alongside the server
and stopped on shutdown.

Examples:
  honyaku serve                    # Start on default port 8000
  honyaku serve --port 3000        # Start on custom port
  honyaku serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		// Get home directory
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		// Load config with hot-reload. The --ollama flag forces the managed
		// container on regardless of the config file.
		if serveOllama {
			viper.Set("ollama.managed", true)
		}
		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cm.WatchConfig()

		// Flags override the config file
		host := cm.Get().Server.Host
		port := cm.Get().Server.Port
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			Home:          h,
			ConfigManager: cm,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8000", "Port to listen on")
	serveCmd.Flags().BoolVar(&serveOllama, "ollama", false, "Start the managed Ollama container with the server")

	rootCmd.AddCommand(serveCmd)
}
