package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/respkv/cmd/aof"
	"github.com/ValentinKolb/respkv/cmd/kv"
	"github.com/ValentinKolb/respkv/cmd/serve"
	"github.com/ValentinKolb/respkv/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "respkv",
		Short: "in-memory key-value server speaking RESP",
		Long: fmt.Sprintf(`respkv (v%s)

An in-memory key-value server written in Go. It speaks the RESP wire
protocol, supports scalar values with expiry and lists, and persists
mutating commands in an append-only log.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of respkv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("respkv v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(aof.AOFCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
