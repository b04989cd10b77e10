package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cros-libva/libva-go/pkg/vabind"
	"github.com/cros-libva/libva-go/pkg/vabind/logging"
)

type globalFlags struct {
	config   string
	logLevel string
	features map[string]string
	jobs     int
}

func (g *globalFlags) open(cmd *cobra.Command) (*vabind.Project, error) {
	logger, err := logging.NewText(cmd.ErrOrStderr(), g.logLevel)
	if err != nil {
		return nil, err
	}
	overrides := map[string]bool{}
	for name, v := range g.features {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("--feature %s=%s: %w", name, v, err)
		}
		overrides[name] = on
	}
	return vabind.Open(vabind.Options{
		ConfigPath: g.config,
		Features:   overrides,
		Logger:     logger,
		Jobs:       g.jobs,
	})
}

// NewCLI builds the vabindgen command tree.
func NewCLI() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "vabindgen",
		Short: "Generate and check the libva cgo bindings",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
		},
	}
	rootCmd.PersistentFlags().StringVarP(&g.config, "config", "c", "vabind.yaml", "Build descriptor")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringToStringVarP(&g.features, "feature", "f", nil, "Override a feature, e.g. protected_content=false")

	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(
		newGenerateCmd(g),
		newCheckCmd(g),
		newSymbolsCmd(g),
		newCICmd(g),
		newVersionCmd(),
	)
	return rootCmd
}

func newGenerateCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Scan the wrapper header and write the bindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.open(cmd)
			if err != nil {
				return err
			}
			res, err := p.Generate(cmd.Context(), nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d files (%d symbols) to %s\n", len(res.Files), res.Set.Len(), res.Dir)
			return nil
		},
	}
	cmd.Flags().IntVarP(&g.jobs, "jobs", "j", 0, "Concurrent generator invocations (0 = GOMAXPROCS)")
	return cmd
}

func newCheckCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify consuming packages against the generated bindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.open(cmd)
			if err != nil {
				return err
			}
			report, err := p.Check(cmd.Context())
			var missing *vabind.MissingSymbolsError
			if errors.As(err, &missing) {
				for _, ref := range missing.Refs {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s not in generated bindings\n", ref.Pos, ref.Name)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d importer(s), %d reference(s) resolved\n", len(report.Importers), len(report.Refs))
			return nil
		},
	}
}

func newSymbolsCmd(g *globalFlags) *cobra.Command {
	var (
		kind     string
		manifest bool
	)
	cmd := &cobra.Command{
		Use:   "symbols [PREFIX]",
		Short: "List the symbols of the binding set",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.open(cmd)
			if err != nil {
				return err
			}
			var syms []vabind.Symbol
			if manifest {
				m, err := p.Manifest()
				if err != nil {
					return err
				}
				syms = m.Symbols
			} else {
				set, err := p.Scan()
				if err != nil {
					return err
				}
				syms = set.Symbols()
			}
			var want vabind.Kind
			if kind != "" {
				if err := want.UnmarshalText([]byte(kind)); err != nil {
					return err
				}
			}
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			renderSymbols(cmd.OutOrStdout(), syms, want, prefix)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Only list symbols of this kind (function, struct, union, enum, typedef, constant, opaque)")
	cmd.Flags().BoolVar(&manifest, "manifest", false, "Read the manifest of the last generation instead of scanning")
	return cmd
}

func renderSymbols(w io.Writer, syms []vabind.Symbol, kind vabind.Kind, prefix string) {
	var data [][]string
	for _, s := range syms {
		if kind != 0 && s.Kind != kind {
			continue
		}
		if prefix != "" && !strings.HasPrefix(s.Name, prefix) {
			continue
		}
		feature := s.Feature
		if feature == "" {
			feature = "-"
		}
		data = append(data, []string{s.Name, s.GoName, s.Kind.String(), s.Header, feature})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"NAME", "GO NAME", "KIND", "HEADER", "FEATURE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

func newCICmd(g *globalFlags) *cobra.Command {
	var workDir string
	cmd := &cobra.Command{
		Use:   "ci",
		Short: "Run the CI health check pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.open(cmd)
			if err != nil {
				return err
			}
			pipeline := p.Pipeline(nil, cmd.OutOrStdout())
			pipeline.WorkDir = workDir
			_, err = pipeline.Run(cmd.Context())
			return err
		},
	}
	cmd.Flags().StringVar(&workDir, "work-dir", "", "Keep the libva checkout and install prefix here instead of a temporary directory")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vabindgen %s (%s)\n", vabind.WrapperVersion(), vabind.Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "libva %s\n", vabind.UpstreamVersion(nil))
		},
	}
}
