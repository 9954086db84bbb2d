package cli

import (
	"context"
	"fmt"
	"go/token"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/packages"

	"github.com/tracegen/tracegen/internal/buildinfo"
	"github.com/tracegen/tracegen/internal/cgen"
	"github.com/tracegen/tracegen/internal/features"
	"github.com/tracegen/tracegen/internal/gogen"
	"github.com/tracegen/tracegen/internal/native"
	"github.com/tracegen/tracegen/internal/provider"
	"github.com/tracegen/tracegen/internal/report"
	"github.com/tracegen/tracegen/internal/version"
)

func newGenerateCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		configPath string
		outDir     string
		infoDir    string
	)

	cmd := &cobra.Command{
		Use:   "generate [packages]",
		Short: "Scan packages for providers and emit wrappers and stubs",
		Long: `generate scans the given package patterns (./... by default) for
interfaces carrying the //tracegen:provider directive. For every provider it
emits a native wrapper translation unit into the output directory and a pair
of Go stub files next to the declaration.

The step consumes the build info written by detect. Without it, or with the
no-op implementation recorded, only no-op stubs are generated.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("out") && cfg.Out != "" {
				outDir = cfg.Out
			}
			if infoDir == "" {
				infoDir = outDir
			}

			patterns := args
			if len(patterns) == 0 {
				patterns = []string{"./..."}
			}

			info, err := buildinfo.Load(infoDir)
			if err != nil {
				fmt.Fprintf(stderr, "note: no build info in %s, generating no-op stubs only\n", infoDir)
				info = &buildinfo.BuildInfo{
					ToolVersion:    version.Version,
					Features:       features.LevelDisabled,
					Implementation: buildinfo.ImplNoOp,
					Reason:         "no detection outcome recorded",
				}
			}

			fset := token.NewFileSet()
			lcfg := &packages.Config{
				Context: cmd.Context(),
				Fset:    fset,
				Mode:    packages.NeedName | packages.NeedFiles | packages.NeedSyntax,
			}
			pkgs, err := packages.Load(lcfg, patterns...)
			if err != nil {
				return fmt.Errorf("load packages: %w", err)
			}

			gen := cgen.Generator{Name: "tracegen", Version: version.Version}

			var (
				reporter report.Reporter
				emitted  int
			)
			scanned, err := scanProviders(fset, pkgs, reporter.Phase(report.PhaseScan))
			if err != nil {
				return err
			}

			for _, pp := range scanned {
				for _, spec := range pp.specs {
					if err := emitProvider(cmd.Context(), nil, gen, info, outDir, pp.dir, spec); err != nil {
						return err
					}
					emitted++
				}
			}

			reporter.WriteSummary(stderr)
			fmt.Fprintf(stdout, "generated stubs for %d providers (%s implementation)\n",
				emitted, info.Implementation.String())

			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", defaultConfigFile, "tool configuration file")
	cmd.Flags().StringVar(&outDir, "out", "tracegen-out", "output directory for native wrapper sources")
	cmd.Flags().StringVar(&infoDir, "build-info", "", "directory holding the build-info file (defaults to --out)")

	return cmd
}

// packageProviders groups the providers declared in one package with the
// directory their stubs belong in.
type packageProviders struct {
	dir   string
	specs []provider.Specification
}

// scanProviders walks all loaded packages with a single scanner. Wrapper
// artifacts of every provider land in one shared output directory, so
// provider names must stay unique across package boundaries, not just within
// one package.
func scanProviders(fset *token.FileSet, pkgs []*packages.Package, r *report.Phase) ([]packageProviders, error) {
	scanner := provider.NewScanner(fset, r)

	var out []packageProviders
	for _, pkg := range pkgs {
		before := len(scanner.Specifications())
		scanner.Scan(inspector.New(pkg.Syntax))

		specs := scanner.Specifications()[before:]
		if len(specs) == 0 {
			continue
		}

		dir, err := packageDir(pkg)
		if err != nil {
			return nil, err
		}

		out = append(out, packageProviders{dir: dir, specs: specs})
	}

	return out, nil
}

// packageDir locates the directory holding a package's sources.
func packageDir(pkg *packages.Package) (string, error) {
	if len(pkg.GoFiles) == 0 {
		return "", fmt.Errorf("package %s has no Go files", pkg.PkgPath)
	}

	return filepath.Dir(pkg.GoFiles[0]), nil
}

// emitProvider writes the generated artifacts of one provider: the wrapper
// translation unit (stap-usdt only), the cgo stub (stap-usdt only), and the
// no-op stub.
func emitProvider(ctx context.Context, run native.Runner, gen cgen.Generator, info *buildinfo.BuildInfo, outDir, pkgDir string, spec provider.Specification) error {
	stapPath := filepath.Join(pkgDir, gogen.StapFileName(spec))

	if info.Implementation == buildinfo.ImplStapUSDT {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}

		unit := filepath.Join(outDir, cgen.FileName(spec))
		if err := writeFile(unit, func(w io.Writer) error {
			return cgen.Emit(w, gen, spec)
		}); err != nil {
			return err
		}

		// the cgo stubs link the wrapper lib, so a broken compile is a hard
		// stop here rather than a confusing one at go build time
		if err := native.BuildWrapperLib(ctx, run, info.CC, unit, cgen.WrapperLib(spec), buildinfo.CFlags(info.Links)); err != nil {
			return err
		}

		links, err := wrapperLinks(outDir, spec, info.Links)
		if err != nil {
			return err
		}

		if err := writeFile(stapPath, func(w io.Writer) error {
			return gogen.EmitStap(w, gen, spec, links)
		}); err != nil {
			return err
		}
	} else {
		// drop a stale cgo stub from an earlier stap-usdt run
		_ = os.Remove(stapPath)
	}

	return writeFile(filepath.Join(pkgDir, gogen.NoopFileName(spec)), func(w io.Writer) error {
		return gogen.EmitNoop(w, gen, spec)
	})
}

// wrapperLinks prepends the provider's own wrapper library to the link set
// recorded by detection.
func wrapperLinks(outDir string, spec provider.Specification, detected []buildinfo.LinkInstruction) ([]buildinfo.LinkInstruction, error) {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}

	links := []buildinfo.LinkInstruction{
		{Kind: buildinfo.LinkSearchPath, Value: abs},
		{Kind: buildinfo.LinkStaticWrapperLib, Value: cgen.WrapperLib(spec)},
	}

	return append(links, detected...), nil
}

func writeFile(path string, fill func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := fill(f); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
