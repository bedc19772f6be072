package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "webpane",
	Short: "Offscreen browser views as GPU textures",
	Long: `webpane hosts browser views offscreen and exposes their rendered
output as GPU textures, with input relay and pixel-alpha click-through.
This binary is a development harness around the library.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and build information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("webpane %s (%s, built %s)\n", version, commit, buildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	viper.SetEnvPrefix("WEBPANE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("log-level", "info")
	viper.SetDefault("log-format", "console")
	viper.SetDefault("width", 800)
	viper.SetDefault("height", 600)
	viper.SetDefault("alpha-interval", 0)
	viper.SetDefault("click-through-threshold", 0)
}
