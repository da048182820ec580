package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sw33tLie/jsenv/internal/utils"
	"github.com/sw33tLie/jsenv/pkg/release"
	"github.com/sw33tLie/jsenv/pkg/storage"
)

func newChecker() *release.Checker {
	c := release.NewChecker(utils.Log)
	if u := viper.GetString("release.manifest_url"); u != "" {
		c.ManifestURL = u
	}
	return c
}

var latestVersionCmd = &cobra.Command{
	Use:   "latest-version",
	Short: "Print the latest stable Babel version published on npm",
	RunE: func(cmd *cobra.Command, _ []string) error {
		record, _ := cmd.Flags().GetBool("record")
		version, err := newChecker().Latest(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), version)
		if !record {
			return nil
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		_, err = db.RecordCheck(cmd.Context(), storage.Check{Package: "babel-standalone", LatestVersion: version})
		return err
	},
}

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Upgrade Babel dependencies and, if Babel moved, build, test, commit and push a new version",
	Long: `Upgrades every devDependency in package.json to its latest npm version. When the
newest babel-* dependency is ahead of the package version, installs, sets the
version, builds, tests, commits package.json and pushes.

Exits with status 1 when the package is already at the latest Babel version.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		root := viper.GetString("release.root")
		if r, _ := cmd.Flags().GetString("root"); r != "" {
			root = r
		}
		skipPush, _ := cmd.Flags().GetBool("skip-push")

		lock, err := utils.NewFileLock(filepath.Join(root, release.ManifestFile))
		if err != nil {
			return err
		}
		lock.NoWait, _ = cmd.Flags().GetBool("no-wait")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		r := &release.Releaser{
			Root:       root,
			Checker:    newChecker(),
			Runner:     release.ExecRunner{},
			Lock:       lock,
			History:    db,
			Log:        utils.Log,
			Author:     viper.GetString("release.author"),
			Remote:     viper.GetString("release.remote"),
			Branch:     viper.GetString("release.branch"),
			InstallCmd: release.SplitCommand(viper.GetString("release.install_cmd")),
			BuildCmd:   release.SplitCommand(viper.GetString("release.build_cmd")),
			TestCmd:    release.SplitCommand(viper.GetString("release.test_cmd")),
			SkipPush:   skipPush,
		}
		res, err := r.Run(cmd.Context())
		if err != nil {
			return err
		}
		if !res.Released() {
			db.Close()
			os.Exit(1)
		}
		utils.Log.Infof("Released %s", res.LatestVersion)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded release runs and version checks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		releases, err := db.ListReleases(cmd.Context(), limit)
		if err != nil {
			return err
		}
		checks, err := db.ListChecks(cmd.Context(), limit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "STARTED\tSTATUS\tVERSION\tMESSAGE")
		for _, r := range releases {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Status, r.Version, r.Message)
		}
		fmt.Fprintln(w, "\t\t\t")
		fmt.Fprintln(w, "CHECKED\tPACKAGE\tCURRENT\tLATEST")
		for _, c := range checks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.CheckedAt.Local().Format("2006-01-02 15:04:05"), c.Package, c.CurrentVersion, c.LatestVersion)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(latestVersionCmd)
	rootCmd.AddCommand(releaseCmd)
	rootCmd.AddCommand(historyCmd)

	latestVersionCmd.Flags().Bool("record", false, "Record the check in the history database")
	releaseCmd.Flags().String("root", "", "Package checkout to release (default: release.root from config)")
	releaseCmd.Flags().Bool("skip-push", false, "Commit without pushing")
	releaseCmd.Flags().Bool("no-wait", false, "Fail instead of waiting when another release holds the lock")
	historyCmd.Flags().Int("limit", 20, "Number of entries of each kind to show")
}
