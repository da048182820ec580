package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sw33tLie/jsenv/internal/utils"
	"github.com/sw33tLie/jsenv/pkg/envpreset"
	"github.com/sw33tLie/jsenv/pkg/registry"
	"github.com/sw33tLie/jsenv/pkg/targets"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Show the plugins and polyfills the env preset selects for a set of targets",
	Example: `  jsenv env --target chrome=52 --target ie=11 --use-built-ins usage
  jsenv env --browsers "chrome 58" --exclude transform-regenerator`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		pairs, _ := cmd.Flags().GetStringArray("target")
		browsers, _ := cmd.Flags().GetStringArray("browsers")
		spec, err := parseTargetFlags(pairs, browsers)
		if err != nil {
			return err
		}
		if uglify, _ := cmd.Flags().GetBool("uglify"); uglify {
			spec.Uglify = true
		}

		opts := envpreset.Options{Targets: spec}
		opts.Include, _ = cmd.Flags().GetStringSlice("include")
		opts.Exclude, _ = cmd.Flags().GetStringSlice("exclude")
		opts.Loose, _ = cmd.Flags().GetBool("loose")
		opts.Spec, _ = cmd.Flags().GetBool("spec")
		opts.Modules, _ = cmd.Flags().GetString("modules")
		opts.UseBuiltIns, _ = cmd.Flags().GetString("use-built-ins")
		opts.Debug, _ = cmd.Flags().GetBool("debug")
		opts.ForceAllTransforms, _ = cmd.Flags().GetBool("force-all-transforms")

		reg := registry.Default(utils.Log)
		b := envpreset.NewBuilder(reg, newResolver(), utils.Log)
		res, err := b.Build(opts)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), res)
		return nil
	},
}

func printReport(w io.Writer, res *envpreset.Result) {
	rep := res.Report
	fmt.Fprintf(w, "Targets: %s\n", rep.Targets)
	if rep.ModulePlugin != "" {
		fmt.Fprintf(w, "Modules transform: %s\n", rep.ModulePlugin)
	}
	fmt.Fprintln(w, "Plugins:")
	for _, f := range rep.TransformationsWithTargets {
		fmt.Fprintf(w, "  %s%s\n", f.Name, featureTargets(f.Targets))
	}
	if res.Polyfills != nil {
		fmt.Fprintln(w, "Polyfills:")
		for _, f := range rep.PolyfillsWithTargets {
			fmt.Fprintf(w, "  %s%s\n", f.Name, featureTargets(f.Targets))
		}
	}
}

func featureTargets(t targets.Resolved) string {
	if len(t) == 0 {
		return ""
	}
	return " " + t.String()
}

func init() {
	rootCmd.AddCommand(envCmd)
	envCmd.Flags().StringArray("target", nil, "Platform version as platform=version (repeatable)")
	envCmd.Flags().StringArray("browsers", nil, "Browser query (repeatable)")
	envCmd.Flags().Bool("uglify", false, "Deprecated: compile everything, same as --force-all-transforms")
	envCmd.Flags().StringSlice("include", nil, "Plugins or built-ins to always include")
	envCmd.Flags().StringSlice("exclude", nil, "Plugins or built-ins to never include")
	envCmd.Flags().Bool("loose", false, "Enable loose mode in transforms that support it")
	envCmd.Flags().Bool("spec", false, "Enable spec mode in transforms that support it")
	envCmd.Flags().String("modules", envpreset.ModulesCommonJS, "Module transform: "+strings.Join([]string{"amd", "umd", "systemjs", "commonjs", "false"}, ", "))
	envCmd.Flags().String("use-built-ins", "", "Polyfill selection: usage or entry")
	envCmd.Flags().Bool("debug", false, "Log the targets, plugins and polyfills")
	envCmd.Flags().Bool("force-all-transforms", false, "Apply every transform regardless of targets")
}

// pluginsCmd and presetsCmd list what the registry knows.
var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List registered plugin names",
	Run: func(cmd *cobra.Command, _ []string) {
		for _, n := range registry.Default(utils.Log).Names(registry.KindPlugin) {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
	},
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List registered preset names",
	Run: func(cmd *cobra.Command, _ []string) {
		reg := registry.Default(utils.Log)
		envpreset.Register(reg, envpreset.NewBuilder(reg, newResolver(), utils.Log))
		for _, n := range reg.Names(registry.KindPreset) {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
	},
}

func init() {
	rootCmd.AddCommand(pluginsCmd)
	rootCmd.AddCommand(presetsCmd)
}
