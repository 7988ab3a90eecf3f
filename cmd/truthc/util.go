package main

import (
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/spf13/cobra"

	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/format"
	"github.com/zero318/truth/internal/format/std"
	"github.com/zero318/truth/internal/pos"
)

// formats is the registry of every format adapter this binary links in.
// "One executable per format" is the conceptual CLI surface; this binary
// instead dispatches on a leading positional format name
// (`truthc std compile ...`), since shipping four near-identical cobra
// trees for three formats that don't exist yet would just be
// copy-paste.
var formats = map[string]format.Adapter{
	"std": std.Adapter{},
}

// GetFlag/GetString/GetStringArray mirror
// Consensys-go-corset/pkg/cmd/util.go's flag-accessor idiom: a cobra flag
// read can only fail if the flag was never registered, which is a coding
// bug, not a user error, so these exit rather than bubble a Go error up
// through every call site.
func GetFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	return r
}

func GetString(cmd *cobra.Command, flag string) string {
	r, err := cmd.Flags().GetString(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	return r
}

func GetStringArray(cmd *cobra.Command, flag string) []string {
	r, err := cmd.Flags().GetStringArray(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	return r
}

// adapterFor resolves the format name given as the subcommand's parent
// (e.g. `std` in `truthc std compile`), exiting with a clear message if the
// format is unknown or not yet implemented.
func adapterFor(name string) format.Adapter {
	a, ok := formats[name]
	if !ok {
		fmt.Printf("truthc: unknown or unimplemented format %q\n", name)
		os.Exit(1)
	}
	return a
}

// printDiagnostics renders every diagnostic root has accumulated to
// stderr, source-span-first, in the order they were emitted.
func printDiagnostics(files *pos.Files, root *diag.RootEmitter) {
	for _, d := range root.Diagnostics {
		loc := ""
		if f := files.Get(d.Primary.Span.File); f != nil {
			line, col := f.LineCol(d.Primary.Span.Start)
			loc = fmt.Sprintf("%s:%d:%d: ", f.Name, line, col)
		}
		fmt.Fprintf(os.Stderr, "%s%s: %s\n", loc, d.Severity, d.Message)
		if d.Primary.Message != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", d.Primary.Message)
		}
		for _, extra := range d.Extra {
			fmt.Fprintf(os.Stderr, "  %s\n", extra.Message)
		}
		for _, note := range d.Notes {
			fmt.Fprintf(os.Stderr, "  note: %s\n", note)
		}
	}
}

// mmapFile memory-maps path read-only instead of slurping it with
// os.ReadFile, the way saferwall-pe/file.go opens a binary under
// analysis: decompile's input is a whole game's worth of stage/sprite
// data, not source text, and the decoder only ever reads forward through
// it once. The returned func must be called to unmap the file.
func mmapFile(path string) (data []byte, closeFn func(), err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return m, func() {
		m.Unmap()
		f.Close()
	}, nil
}

// exitIfErrors prints every diagnostic and exits non-zero if root recorded
// any error- or bug-severity diagnostic.
func exitIfErrors(files *pos.Files, root *diag.RootEmitter) {
	printDiagnostics(files, root)
	if root.HasErrors() {
		os.Exit(1)
	}
}
