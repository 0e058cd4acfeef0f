package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "peercall",
	Short: "peercall coordinates presence and one-to-one call signaling.",
	RunE:  runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling server",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().String("config-env", "", "config file suffix: config/config.<env>.yaml (default $CONFIG_ENV or dev)")
		c.Flags().Int("port", 8080, "listen port")
	}
	smokeCmd.Flags().String("server", "ws://localhost:8080/api/ws/signal", "signaling endpoint")
	smokeCmd.Flags().Duration("timeout", 0, "overall deadline (default 15s)")

	rootCmd.AddCommand(serveCmd, smokeCmd, versionCmd)
}

// initLogger mirrors the server defaults before config is known.
func initLogger(level string, console bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
