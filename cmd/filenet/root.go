// Command filenet runs either the tracker or a peer agent, using Cobra
// subcommands the way the rest of the corpus structures its CLIs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodeswarm/filenet/config"
	"github.com/nodeswarm/filenet/pkg/env"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "filenet",
	Short: "filenet — a chunked, content-addressed peer-to-peer file swarm",
	Long: `filenet splits files into fixed-size, checksummed chunks and
distributes them across a swarm of peers coordinated by a single tracker.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing config.yaml")
	rootCmd.AddCommand(trackerCmd)
	rootCmd.AddCommand(peerCmd)
}

// Execute runs the root command.
func Execute() {
	env.LoadEnv()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() *config.AppConfig {
	config.LoadConfig(configPath)
	return config.Config
}

func main() {
	Execute()
}
