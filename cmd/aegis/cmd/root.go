// Package cmd provides the CLI commands for Aegis.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aegis-authz/aegis/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "aegis",
	Short: "Aegis - access-control policy engine",
	Long: `Aegis evaluates access-control policies written in a small,
Python-like expression language. A rule produces an authorization: a
boolean verdict plus named authorization attributes carrying
sub-decisions.

Quick start:
  1. Write a rules file, aegis-rules.yaml:
       rules:
         - name: update_user
           text: user.admin or user == target
  2. Evaluate from the command line:
       aegis eval update_user --var user='{"admin": true}'
  3. Or serve the HTTP API:
       aegis serve

Configuration:
  Config is loaded from aegis.yaml in the current directory,
  $HOME/.aegis/, or /etc/aegis/.

  Environment variables can override config values with the AEGIS_
  prefix. Example: AEGIS_SERVER_ADDR=:9090

Commands:
  serve       Start the policy HTTP API
  eval        Evaluate one rule against variable bindings
  lint        Parse-check a rules file
  docs        Render a sample policy file from declared documentation
  hash-key    Hash an API key for the auth config
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./aegis.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
