package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jcodybaker/wgsync/pkg/agent"
	"github.com/jcodybaker/wgsync/pkg/config"
	"github.com/jcodybaker/wgsync/pkg/logging"
)

var (
	cmdline     bool
	checkSource string

	ll log.FieldLogger
)

var rootCmd = &cobra.Command{
	Use:   "wgsync IFNAME CONFIG",
	Short: "Maintain a WireGuard interface's peer list from remote sources",
	Long: `wgsync periodically fetches peer descriptions from one or more HTTP(S)
sources, merges them under the operator's policy, and reconciles the result
against the interface through the wg utility.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	log.SetFormatter(&logging.SyslogFormatter{})
	log.SetLevel(log.InfoLevel)

	rootCmd.Flags().BoolVar(&cmdline, "cmdline", false,
		"read the configuration from the remaining arguments instead of a file")
	rootCmd.Flags().StringVar(&checkSource, "check-source", "",
		"validate a source JSON document and exit")
	rootCmd.Flags().SetInterspersed(false)
}

func main() {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetFormatter(&log.TextFormatter{})
	}
	ll = log.StandardLogger()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if checkSource != "" {
		return runCheckSource(checkSource, args)
	}
	if cmdline {
		if len(args) < 1 {
			return usageError(cmd)
		}
		cfg, err := config.FromArgs(args[1:])
		if err != nil {
			ll.Errorf("Invalid config: %v", err)
			return err
		}
		return runDaemon(args[0], cfg)
	}

	if len(args) != 2 {
		return usageError(cmd)
	}
	cfg, err := config.LoadFile(args[1])
	if err != nil {
		ll.Errorf("Failed to load config: %v", err)
		return err
	}
	return runDaemon(args[0], cfg)
}

// runCheckSource parses a source document and reports the verdict on stdout.
func runCheckSource(path string, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("--check-source takes no further arguments")
	}
	if _, err := agent.LoadSourceFile(path); err != nil {
		fmt.Println(err)
		return err
	}
	fmt.Println("OK")
	return nil
}

func runDaemon(ifname string, cfg *config.Config) error {
	maybeEnvDir(&cfg.CacheDirectory, "CACHE_DIRECTORY")
	maybeEnvDir(&cfg.RuntimeDirectory, "RUNTIME_DIRECTORY")

	a, err := agent.New(ifname, cfg, agent.WithLogger(ll))
	if err != nil {
		ll.Errorf("Failed to start: %v", err)
		return err
	}

	err = a.Run(context.Background())
	ll.Error(err)
	return err
}

// maybeEnvDir fills an unset path from the environment. The variable is
// removed either way so child processes do not inherit it.
func maybeEnvDir(out *string, name string) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	os.Unsetenv(name)
	if *out == "" {
		*out = v
	}
}

func usageError(cmd *cobra.Command) error {
	err := fmt.Errorf("invalid arguments; see `%s --help` for more information", cmd.CommandPath())
	ll.Error(err)
	return err
}
