package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	addrFlag    string
	jsonOutput  bool
	timeoutFlag time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "printmon-cli",
	Short:         "Inspect and call a running printmon daemon",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "gRPC address (default: $PRINTMON_GRPC_ADDR, then config core.grpc_addr)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON output")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 10*time.Second, "Request timeout")

	pluginsCmd.AddCommand(pluginsListCmd)
	pluginsCmd.AddCommand(pluginsDescribeCmd)

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(pluginsCmd)
	rootCmd.AddCommand(sensorsCmd)
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(methodsCmd)
	rootCmd.AddCommand(callCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "printmon-cli: %v\n", err)
		os.Exit(1)
	}
}
