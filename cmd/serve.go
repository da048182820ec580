package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sw33tLie/jsenv/internal/server"
	"github.com/sw33tLie/jsenv/internal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the transform API, the latest Babel version and Prometheus metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		listenAddr, _ := cmd.Flags().GetString("listen")
		noHistory, _ := cmd.Flags().GetBool("no-history")

		t, engine, err := newTransformer()
		if err != nil {
			return err
		}
		s := server.New(t, newResolver(), newChecker(), viper.GetString("server.username"), viper.GetString("server.password"))
		s.Log = utils.Log
		s.Engine = engine
		if ttl, _ := cmd.Flags().GetDuration("version-ttl"); cmd.Flags().Changed("version-ttl") {
			s.VersionTTL = ttl
		}
		if !noHistory {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			s.History = db
		}
		return s.Start(listenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().Duration("version-ttl", 0, "Cache the latest Babel version this long (default 10m)")
	serveCmd.Flags().Bool("no-history", false, "Do not record version checks or serve /api/history")
}
