package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/jsenv/internal/utils"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jsenv",
	Short: "Compile modern JavaScript for the environments you target.",
	Long: `jsenv resolves Babel presets and plugins by name, picks the transforms your
target browsers and Node versions need, and runs text/babel script tags in order.

It also keeps a babel-standalone style package in step with upstream Babel
releases.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.jsenv.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("engine", "", "Compiler engine: esbuild or babel (default from config, else esbuild)")
	rootCmd.PersistentFlags().String("babel-bundle", "", "Path to a babel-standalone bundle, used by the babel engine")
	_ = viper.BindPFlag("engine", rootCmd.PersistentFlags().Lookup("engine"))
	_ = viper.BindPFlag("babel.bundle", rootCmd.PersistentFlags().Lookup("babel-bundle"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".jsenv")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("jsenv")
	viper.AutomaticEnv()

	viper.SetDefault("engine", engineEsbuild)
	viper.SetDefault("babel.bundle", "")
	viper.SetDefault("targets.node_current", "")
	viper.SetDefault("scripts.presets", []string{})
	viper.SetDefault("scripts.plugins", []string{})
	viper.SetDefault("release.root", ".")
	viper.SetDefault("release.manifest_url", "")
	viper.SetDefault("release.author", "")
	viper.SetDefault("release.install_cmd", "")
	viper.SetDefault("release.build_cmd", "")
	viper.SetDefault("release.test_cmd", "")
	viper.SetDefault("release.remote", "")
	viper.SetDefault("release.branch", "")
	viper.SetDefault("db.path", "")
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.jsenv.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
