package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/intrinsic"
	"github.com/zero318/truth/internal/mapfile"
	"github.com/zero318/truth/internal/pos"
)

// mapcheckCmd validates one or more mapfiles standalone, without a
// source or binary file to compile/decompile. Parsing emits its own
// diagnostics; building the intrinsic ABI table on top of the merged
// result additionally catches mapfile-vs-ABI mismatches (wrong arity,
// unrepresentable operand shapes).
var mapcheckCmd = &cobra.Command{
	Use:   "mapcheck MAPFILE...",
	Short: "Validate one or more mapfiles, optionally merged against a format's builtin mapfile.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runMapcheck(cmd, args)
	},
}

func init() {
	mapcheckCmd.Flags().StringP("format", "f", "", "also merge against this format's builtin mapfile (e.g. std)")
	mapcheckCmd.Flags().StringP("game", "g", "10", "game identifier, used only with --format")
}

func runMapcheck(cmd *cobra.Command, paths []string) {
	root := diag.NewRootEmitter()
	files := pos.NewFiles()

	var mf *mapfile.Mapfile
	if name := GetString(cmd, "format"); name != "" {
		adapter := adapterFor(name)
		builtin, err := adapter.BuiltinMapfile(GetString(cmd, "game"))
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		mf = builtin
	}

	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		id := files.Add(path, src)
		parsed, err := mapfile.Parse(files.Get(id), id, root)
		if err != nil {
			exitIfErrors(files, root)
			os.Exit(1)
		}
		if mf == nil {
			mf = parsed
		} else {
			mf.Merge(parsed, root)
		}
	}
	exitIfErrors(files, root)

	intrinsic.BuildTable(mf, root)
	exitIfErrors(files, root)

	fmt.Printf("%d mapfile(s) OK\n", len(paths))
}
