package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Resolve browser queries and platform versions to the versions jsenv compiles for",
	Example: `  jsenv targets --browsers "chrome 58, ie 10"
  jsenv targets --target node=current --target safari=10.1`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		pairs, _ := cmd.Flags().GetStringArray("target")
		browsers, _ := cmd.Flags().GetStringArray("browsers")
		spec, err := parseTargetFlags(pairs, browsers)
		if err != nil {
			return err
		}
		resolved, err := newResolver().Resolve(spec)
		if err != nil {
			return err
		}
		for _, name := range resolved.Names() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, resolved[name])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(targetsCmd)
	targetsCmd.Flags().StringArray("target", nil, "Platform version as platform=version (repeatable)")
	targetsCmd.Flags().StringArray("browsers", nil, "Browser query such as \"chrome 58, ie 10\" (repeatable)")
}
