package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/context"
	"github.com/zero318/truth/internal/intrinsic"
	"github.com/zero318/truth/internal/meta"
	"github.com/zero318/truth/internal/pos"
	"github.com/zero318/truth/internal/print"
	"github.com/zero318/truth/internal/raise"
)

// newDecompileCmd builds the `truthc <format> decompile` subcommand
//: this format's on-disk bytes in, source text
// out.
func newDecompileCmd(formatName string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decompile BINARY",
		Short: fmt.Sprintf("Decompile %s binary to source.", formatName),
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runDecompile(formatName, cmd, args[0])
		},
	}
	cmd.Flags().StringP("game", "g", "10", "source game identifier (e.g. 06, 08, 10)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringArrayP("mapfile", "m", nil, "additional mapfile to merge in, later wins")
	cmd.Flags().Bool("no-builtin-mapfiles", false, "don't preload the format's builtin mapfile")
	cmd.Flags().Bool("no-intrinsics", false, "render every instruction as a raw call, never recover operator syntax")
	cmd.Flags().Bool("no-arguments", false, "render arguments positionally, never recover named parameters")
	// --no-blocks is accepted for CLI-surface compatibility but is
	// currently a no-op: no pass in this repo reconstructs
	// structured control flow (loops/if-chains) from a raised goto/label
	// soup yet, so every decompile is already block-free at the level
	// --no-blocks describes. DESIGN.md's cmd/truthc section records this
	// as an open item rather than silently dropping the flag.
	cmd.Flags().Bool("no-blocks", false, "reserved: structural reconstruction is not yet implemented")
	return cmd
}

func runDecompile(formatName string, cmd *cobra.Command, binaryPath string) {
	adapter := adapterFor(formatName)
	game := GetString(cmd, "game")
	lang := adapter.Language(game)

	root := context.NewRoot()
	data, closeData, err := mmapFile(binaryPath)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer closeData()

	decoded, err := adapter.Decode(game, data)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	log.Debugf("%s: decoded %d sub(s)", binaryPath, len(decoded.Subs))

	mf, err := loadMapfiles(adapter, game, cmd)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	ctx := context.NewContext(root)
	ctx.LoadMapfile(mf, lang)
	table := intrinsic.BuildTable(mf, root.Emitter)
	exitIfErrors(root.Files, root.Emitter)

	opts := raise.Options{
		NoIntrinsics: GetFlag(cmd, "no-intrinsics"),
		NoArguments:  GetFlag(cmd, "no-arguments"),
	}
	r := raise.NewRaiser(ctx, lang, table, mf, opts, root.Emitter)

	file := &ast.ScriptFile{}
	if m := headerToMetaItem(decoded.Header); m != nil {
		file.Items = append(file.Items, m)
	}
	for i, sub := range decoded.Subs {
		block, err := r.RaiseSub(sub.Instrs)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		number := i
		file.Items = append(file.Items, &ast.ScriptItem{
			Kind:     ast.ScriptBlock,
			NumberID: &number,
			Name:     fmt.Sprintf("sub%d", i),
			Body:     block,
		})
	}
	exitIfErrors(root.Files, root.Emitter)

	p := print.New(ctx.Interner)
	p.PrintFile(file)

	outPath := GetString(cmd, "output")
	if outPath == "" {
		fmt.Print(p.String())
		return
	}
	if err := os.WriteFile(outPath, []byte(p.String()), 0o644); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// headerToMetaItem renders the flat scalar fields of a decoded header
// back into a `meta { ... }` block (the inverse, for the fields it can
// express, of compile.go's buildHeaderMeta). The nested object/quad/
// instance tables a format like STD also carries have no meta-block
// source syntax to round-trip through (ast.MetaField.Value is a single
// scalar Expr); decompile drops them without a trace in the output, as
// it does the recomputed count/offset fields.
func headerToMetaItem(h meta.Value) *ast.MetaItem {
	keys := h.Keys()
	if len(keys) == 0 {
		return nil
	}
	item := &ast.MetaItem{Keyword: "meta"}
	for _, k := range keys {
		switch k {
		case "objects", "instances", "num_objects", "num_quads", "instances_offset", "script_offset":
			continue
		}
		v, ok := h.Field(k)
		if !ok {
			continue
		}
		expr := metaValueToExpr(v)
		if expr == nil {
			continue
		}
		item.Fields = append(item.Fields, ast.MetaField{Name: k, Value: expr})
	}
	if len(item.Fields) == 0 {
		return nil
	}
	return item
}

func metaValueToExpr(v meta.Value) ast.Expr {
	switch v.Kind() {
	case meta.KindInt:
		i, _ := v.Int()
		return ast.NewLitInt(pos.NullSpan, int32(i), ast.RadixDecimal)
	case meta.KindFloat:
		f, _ := v.Float()
		return ast.NewLitFloat(pos.NullSpan, float32(f))
	case meta.KindString:
		return ast.NewLitString(pos.NullSpan, []byte(v.String()))
	default:
		return nil
	}
}
