package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"exe2dll"
	"exe2dll/internal/imagefile"
	"exe2dll/internal/verify"
	"exe2dll/memorymodule"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"
)

var logger = log.New(os.Stderr, "exe2dll: ", 0)

type config struct {
	dllName  string
	checksum bool
	verify   bool
	probe    bool
	verbose  bool
}

func (c *config) debugf(format string, a ...any) {
	if c.verbose {
		logger.Printf(format, a...)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}
	root := &cobra.Command{
		Use:   "exe2dll <input.exe> <output.dll> <exported-name>",
		Short: "exe2dll turns a relocatable executable into a dll exporting its entry point",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convert(cmd, cfg, args[0], args[1], args[2])
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := root.Flags()
	flags.StringVar(&cfg.dllName, "dll-name", "", "module name stored in the export table (default: base name of output.dll)")
	flags.BoolVar(&cfg.checksum, "checksum", !env.Bool("EXE2DLL_NO_CHECKSUM"), "recompute the optional header checksum")
	flags.BoolVar(&cfg.verify, "verify", true, "re-parse the output before writing it")
	flags.BoolVar(&cfg.probe, "probe", false, "load the written dll and resolve the export (windows only)")
	root.PersistentFlags().BoolVarP(&cfg.verbose, "verbose", "v", env.Bool("EXE2DLL_VERBOSE"), "log every step")

	root.AddCommand(newExportsCmd(), newCavesCmd(cfg))
	return root
}

func convert(cmd *cobra.Command, cfg *config, input, output, name string) error {
	buf, err := imagefile.Read(input)
	if err != nil {
		return err
	}
	cfg.debugf("read %s, %d bytes", input, len(buf))

	dllName := cfg.dllName
	if dllName == "" {
		dllName = filepath.Base(output)
	}
	r, err := exe2dll.Convert(buf, exe2dll.Options{
		ExportName:  name,
		DLLName:     dllName,
		FixChecksum: cfg.checksum,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	for _, c := range r.Caves {
		cfg.debugf("%s: %s", c.Label, c)
	}
	if cfg.checksum {
		cfg.debugf("checksum 0x%08x", r.Checksum)
	}

	if cfg.verify {
		if err := verify.Check(r.Image, name, r.OriginalEntryPoint, r.EntryPoint); err != nil {
			return err
		}
		cfg.debugf("verified %s", name)
	}

	st, err := os.Stat(input)
	if err != nil {
		return err
	}
	if err := imagefile.Write(output, r.Image, st.Mode().Perm()); err != nil {
		return err
	}

	if cfg.probe {
		rva, err := memorymodule.Probe(output, name)
		if err != nil {
			return err
		}
		if rva != uintptr(r.OriginalEntryPoint) {
			return fmt.Errorf("%s resolves to 0x%x, want 0x%x", name, rva, r.OriginalEntryPoint)
		}
		cfg.debugf("probe resolved %s at 0x%x", name, rva)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s dll, %s -> 0x%x, DllMain at 0x%x\n",
		output, r.Bitness, name, r.OriginalEntryPoint, r.EntryPoint)
	return nil
}

func newExportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exports <file>",
		Short: "list the exports of a pe file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := imagefile.Read(args[0])
			if err != nil {
				return err
			}
			r, err := verify.Inspect(buf)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetTitle(r.Module)
			t.AppendHeader(table.Row{"#", "Ordinal", "Name", "RVA"})
			for i, e := range r.Exports {
				t.AppendRow(table.Row{i, e.Ordinal, e.Name, fmt.Sprintf("0x%08x", e.RVA)})
			}
			t.Render()
			return nil
		},
	}
}

func newCavesCmd(cfg *config) *cobra.Command {
	var perm string
	var minSize uint32
	cmd := &cobra.Command{
		Use:   "caves <file>",
		Short: "list the unused section tails a conversion could write to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := exe2dll.ParsePermission(perm)
			if err != nil {
				return err
			}
			buf, err := imagefile.Read(args[0])
			if err != nil {
				return err
			}
			img, err := exe2dll.Open(buf)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Section", "Perm", "Offset", "RVA", "Size"})
			for _, c := range exe2dll.NewAllocator(img).Caves(p) {
				if c.Size < minSize {
					cfg.debugf("skip %s", c)
					continue
				}
				t.AppendRow(table.Row{c.Section, c.Permissions, fmt.Sprintf("0x%08x", c.Offset), fmt.Sprintf("0x%08x", c.RVA), c.Size})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&perm, "perm", "r", "required section permissions, any of rwx")
	cmd.Flags().Uint32Var(&minSize, "min", 1, "smallest cave to list, in bytes")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Println(err)
		os.Exit(1)
	}
}
