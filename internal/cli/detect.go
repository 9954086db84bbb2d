package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tracegen/tracegen/internal/buildinfo"
	"github.com/tracegen/tracegen/internal/features"
	"github.com/tracegen/tracegen/internal/native"
	"github.com/tracegen/tracegen/internal/version"
)

func newDetectCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		configPath  string
		featureList string
		outDir      string
		cc          string
		dynamic     bool
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Probe the host toolchain for USDT support and record the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("features") && cfg.Features != "" {
				featureList = cfg.Features
			}
			if !cmd.Flags().Changed("out") && cfg.Out != "" {
				outDir = cfg.Out
			}

			set, err := features.Parse(featureList)
			if err != nil {
				return err
			}

			opts := native.FromEnv()
			if cfg.CC != "" {
				opts.CC = cfg.CC
			}
			if cfg.IncludeDir != "" {
				opts.IncludeDir = cfg.IncludeDir
			}
			if cfg.LibDir != "" {
				opts.LibDir = cfg.LibDir
			}
			opts.Dynamic = opts.Dynamic || cfg.Dynamic || dynamic
			if cc != "" {
				opts.CC = cc
			}

			info, resolveErr := runDetect(cmd.Context(), set, opts)

			// The outcome is recorded even when it fails the build, so a
			// later generate step and the user can see what went wrong.
			if err := info.Save(outDir); err != nil {
				return err
			}

			fmt.Fprintf(stdout, "implementation: %s\n", info.Implementation.String())
			if info.Reason != "" {
				fmt.Fprintf(stderr, "note: %s\n", info.Reason)
			}

			return resolveErr
		},
	}

	cmd.Flags().StringVar(&configPath, "config", defaultConfigFile, "tool configuration file")
	cmd.Flags().StringVar(&featureList, "features", "enabled", `feature selection: "enabled", "enabled,required" or "" to disable probing`)
	cmd.Flags().StringVar(&outDir, "out", "tracegen-out", "output directory for the build-info file")
	cmd.Flags().StringVar(&cc, "cc", "", "C compiler override")
	cmd.Flags().BoolVar(&dynamic, "dynamic", false, "link dynamically against libstapsdt")

	return cmd
}

// runDetect probes the native stack under the cascaded feature selection and
// assembles the build info. The returned info is valid even when the error
// is set.
func runDetect(ctx context.Context, set features.Set, opts native.Options) (*buildinfo.BuildInfo, error) {
	var det native.Detection

	// The binding layer sees the cascaded selection: enabled stays enabled,
	// required stays required.
	binding := set.Cascade()
	if binding.Enabled() {
		det = native.Detect(ctx, opts)
	} else {
		det.Reason = "probing disabled by feature selection"
	}

	info := &buildinfo.BuildInfo{
		ToolVersion:    version.Version,
		GeneratedAt:    time.Now().UTC(),
		Features:       set.Level(),
		Implementation: buildinfo.ImplNoOp,
		CC:             det.CC,
		SDTHeader:      det.SDTHeader,
		Libstapsdt:     det.Libstapsdt,
		Reason:         det.Reason,
		Links:          det.Links,
	}

	impl, err := buildinfo.Resolve(set.Level(), det.Available, det.Reason)
	if err != nil {
		return info, err
	}
	info.Implementation = impl

	return info, nil
}
