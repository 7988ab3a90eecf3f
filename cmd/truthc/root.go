package main

import (
	"fmt"
	"os"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// rootCmd is the base command; its only real job is to host the
// per-format command trees and the standalone mapcheck command, mirroring Consensys-go-corset/pkg/cmd/root.go's
// rootCmd-plus-init()-registration shape.
var rootCmd = &cobra.Command{
	Use:   "truthc",
	Short: "Compiler/decompiler for Touhou binary script formats.",
	Long: "truthc compiles script source to a format's on-disk binary\n" +
		"representation, and decompiles such a binary back to source.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if GetFlag(cmd, "verbose") {
			log.SetLevel(log.DebugLevel)
		}
	},
}

// Execute runs the root command, exiting non-zero on any cobra-level
// error (flag parsing, unknown subcommand). Called once from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase logging verbosity")
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		formatCmd := &cobra.Command{
			Use:   name,
			Short: fmt.Sprintf("Work with %s-format script files.", name),
		}
		formatCmd.AddCommand(newCompileCmd(name), newDecompileCmd(name))
		rootCmd.AddCommand(formatCmd)
	}
	rootCmd.AddCommand(mapcheckCmd)
}
