package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sw33tLie/jsenv/internal/utils"
	"github.com/sw33tLie/jsenv/pkg/compiler"
	"github.com/sw33tLie/jsenv/pkg/standalone"
)

var transformCmd = &cobra.Command{
	Use:   "transform [file]",
	Short: "Compile a file (or stdin) with the given presets and plugins",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		presets, _ := cmd.Flags().GetStringSlice("presets")
		plugins, _ := cmd.Flags().GetStringSlice("plugins")
		filename, _ := cmd.Flags().GetString("filename")
		sourceMaps, _ := cmd.Flags().GetString("source-maps")

		code, name, err := readSource(args)
		if err != nil {
			return err
		}
		if filename == "" {
			filename = name
		}
		sm, err := compiler.ParseSourceMaps(sourceMaps)
		if err != nil {
			return err
		}

		t, engine, err := newTransformer()
		if err != nil {
			return err
		}
		utils.Log.Debugf("transforming %s with %s", filename, engine)
		res, err := t.Transform(cmd.Context(), code, standalone.Options{
			Filename:   filename,
			Presets:    standalone.Names(presets...),
			Plugins:    standalone.Names(plugins...),
			SourceMaps: sm,
		})
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			utils.Log.Warn(w.String())
		}
		for _, p := range res.Polyfills {
			fmt.Fprintf(os.Stderr, "polyfill: %s\n", p)
		}
		if err := writeOutput(cmd, res.Code); err != nil {
			return err
		}
		if mapOut, _ := cmd.Flags().GetString("map-out"); mapOut != "" && res.Map != "" {
			return os.WriteFile(mapOut, []byte(res.Map), 0o644)
		}
		return nil
	},
}

var minifyCmd = &cobra.Command{
	Use:   "minify [file]",
	Short: "Minify a file (or stdin) with esbuild",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, name, err := readSource(args)
		if err != nil {
			return err
		}
		t, _, err := newTransformer()
		if err != nil {
			return err
		}
		res, err := t.Minify(cmd.Context(), code, name)
		if err != nil {
			return err
		}
		return writeOutput(cmd, res.Code)
	},
}

func init() {
	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(minifyCmd)

	transformCmd.Flags().StringSlice("presets", nil, "Presets to apply, by name (e.g. env,react)")
	transformCmd.Flags().StringSlice("plugins", nil, "Plugins to apply, by name")
	transformCmd.Flags().String("filename", "", "Filename used in messages and source maps (default: input path)")
	transformCmd.Flags().String("source-maps", "", "Source maps: inline, external or both")
	transformCmd.Flags().StringP("out", "o", "", "Output file (default: stdout)")
	transformCmd.Flags().String("map-out", "", "Write an external source map to this file")

	minifyCmd.Flags().StringP("out", "o", "", "Output file (default: stdout)")
}
