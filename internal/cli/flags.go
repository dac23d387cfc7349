package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// GlobalFlags holds global flag values
type GlobalFlags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
	NoColor    bool
	LogFile    string
	LogLevel   string
}

// settings resolves global flags against DIRCOMPARE_* environment variables.
// A flag given on the command line wins over the environment.
var settings = viper.New()

// AddGlobalFlags adds global flags to the root command
func AddGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String(
		"config",
		"",
		"config file (default is $HOME/.config/dircompare/config.yaml)",
	)
	flags.BoolP(
		"verbose",
		"v",
		false,
		"verbose output",
	)
	flags.BoolP(
		"quiet",
		"q",
		false,
		"suppress non-error output",
	)
	flags.Bool("no-color", false, "disable colored output")
	flags.String("log-file", "", "write logs to file (enables logging)")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	settings.SetEnvPrefix("DIRCOMPARE")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
	_ = settings.BindPFlags(flags)
}

// GetGlobalFlags returns the global flags
func GetGlobalFlags() *GlobalFlags {
	return &GlobalFlags{
		ConfigFile: settings.GetString("config"),
		Verbose:    settings.GetBool("verbose"),
		Quiet:      settings.GetBool("quiet"),
		NoColor:    settings.GetBool("no-color"),
		LogFile:    settings.GetString("log-file"),
		LogLevel:   settings.GetString("log-level"),
	}
}
