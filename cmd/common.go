package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sw33tLie/jsenv/internal/utils"
	"github.com/sw33tLie/jsenv/pkg/compiler"
	"github.com/sw33tLie/jsenv/pkg/standalone"
	"github.com/sw33tLie/jsenv/pkg/storage"
	"github.com/sw33tLie/jsenv/pkg/targets"
)

const (
	engineEsbuild = "esbuild"
	engineBabel   = "babel"
)

func newResolver() *targets.Resolver {
	return targets.NewResolver(viper.GetString("targets.node_current"), utils.Log)
}

// newTransformer builds the transform facade for the configured engine.
// esbuild always provides minification.
func newTransformer() (*standalone.Transformer, string, error) {
	esb := compiler.NewEsbuild(utils.Log)
	engine := strings.ToLower(viper.GetString("engine"))
	var c compiler.Compiler
	switch engine {
	case "", engineEsbuild:
		engine = engineEsbuild
		c = esb
	case engineBabel:
		bundle := viper.GetString("babel.bundle")
		if bundle == "" {
			return nil, "", fmt.Errorf("the babel engine needs babel.bundle (or --babel-bundle) pointing at babel-standalone's babel.js")
		}
		b, err := compiler.LoadBabel(bundle, utils.Log)
		if err != nil {
			return nil, "", err
		}
		if v := b.Version(); v != "" {
			utils.Log.Infof("Using Babel %s from %s", v, bundle)
		} else {
			utils.Log.Warnf("%s does not report a Babel version", bundle)
		}
		c = b
	default:
		return nil, "", fmt.Errorf("unknown engine %q, expected %s or %s", engine, engineEsbuild, engineBabel)
	}
	return standalone.New(c, esb, newResolver(), utils.Log), engine, nil
}

// readSource reads the single file argument, or stdin for "-" or no argument.
// The returned name is used as the filename option.
func readSource(args []string) (string, string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), "stdin", err
	}
	b, err := os.ReadFile(args[0])
	return string(b), args[0], err
}

// writeOutput writes to the --out file, or stdout when it is empty.
func writeOutput(cmd *cobra.Command, content string) error {
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), content)
		return err
	}
	return os.WriteFile(out, []byte(content), 0o644)
}

func openDB() (*storage.DB, error) {
	path, err := utils.DefaultDBPath(viper.GetString("db.path"))
	if err != nil {
		return nil, err
	}
	return storage.Open(path)
}

// parseTargetFlags turns --target platform=version pairs and --browsers
// queries into a target spec.
func parseTargetFlags(pairs []string, browsers []string) (targets.Spec, error) {
	raw := make(map[string]interface{})
	for _, p := range pairs {
		name, version, ok := strings.Cut(p, "=")
		if !ok {
			return targets.Spec{}, fmt.Errorf("target %q is not in platform=version form", p)
		}
		raw[strings.TrimSpace(name)] = strings.TrimSpace(version)
	}
	if len(browsers) > 0 {
		list := make([]interface{}, len(browsers))
		for i, b := range browsers {
			list[i] = b
		}
		raw["browsers"] = list
	}
	return targets.DecodeSpec(raw)
}

// configList reads a list setting. Strings, as set through JSENV_*
// variables, are split on commas.
func configList(key string) []string {
	if s, ok := viper.Get(key).(string); ok {
		return utils.SplitList(s)
	}
	return viper.GetStringSlice(key)
}
