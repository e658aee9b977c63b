// Command repyable serves a replay session over grpc and provides tools to
// produce to and tail a remote session.
package main

import (
	"context"
	"os"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/log"
	"github.com/spf13/cobra"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Error(context.Background(), err)
		os.Exit(1)
	}

	if err := newRootCommand(&cfg).Execute(); err != nil {
		log.Error(context.Background(), errors.Wrap(err, "repyable"))
		os.Exit(1)
	}
}

func newRootCommand(cfg *config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "repyable",
		Short: "Bit packed event replay sessions",
		Long: `repyable serves an in-memory event session over grpc. Producers append
bit packed records which are delivered once via the session queue and
can be replayed by any number of consumers from the session buffer.`,
		SilenceUsage: true,
	}

	cfg.bindGlobal(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newServeCommand(cfg))
	rootCmd.AddCommand(newProduceCommand(cfg))
	rootCmd.AddCommand(newTailCommand(cfg))

	return rootCmd
}
