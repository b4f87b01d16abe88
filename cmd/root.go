package cmd

import (
	"fmt"
	"os"

	"github.com/evkv/evkv/cmd/kv"
	"github.com/evkv/evkv/cmd/serve"
	"github.com/evkv/evkv/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "evkv",
		Short: "eventually consistent key-value store",
		Long: fmt.Sprintf(`evkv (v%s)

An in-memory key-value store written in Go. Writes are queued and
applied by a periodic reconciler, reads are lock-free against an
immutable snapshot.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of evkv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("evkv v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
