package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tartampluch/go-contactsync/internal/config"
)

// app carries the state shared by all commands.
type app struct {
	out io.Writer
	v   *viper.Viper

	settings  *config.Settings
	logCloser io.Closer

	debug   bool
	version bool

	// confirm asks the user to approve a commit. Replaced in tests.
	confirm func(title, affirmative, negative string) (bool, error)
	// promptToken reads the API token interactively. Replaced in tests.
	promptToken func(title string) (string, error)
}

func newApp(out io.Writer) *app {
	return &app{
		out:         out,
		v:           viper.New(),
		confirm:     confirmForm,
		promptToken: tokenForm,
	}
}

func (a *app) close() {
	if a.logCloser != nil {
		_ = a.logCloser.Close() // Best effort close
	}
}

// newRootCmd builds the command tree. Flags are bound into the app's viper
// instance so they take precedence over every other settings source.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           config.CmdRoot,
		Short:         config.DescRoot,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.version {
				return nil
			}
			a.logCloser = setupLogging(a.debug, os.Stderr)
			logStartupInfo()

			s, err := config.Load(a.v)
			if err != nil {
				return err
			}
			a.settings = s
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.version {
				printVersion(a.out)
				return nil
			}
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVar(&a.debug, config.FlagDebug, false, config.FlagDescDebug)
	pf.String(config.FlagConfig, "", config.FlagDescConfig)
	pf.String(config.FlagAPIURL, "", config.FlagDescAPIURL)
	pf.String(config.FlagVCard, "", config.FlagDescVCard)
	pf.String(config.FlagLang, "", config.FlagDescLang)
	pf.StringP(config.FlagOutput, config.FlagShortOutput, "", config.FlagDescOutput)
	pf.Int(config.FlagConcurrency, config.DefaultConcurrency, config.FlagDescConcurrency)
	pf.Duration(config.FlagTimeout, config.DefaultBatchTimeout, config.FlagDescTimeout)
	root.Flags().BoolVar(&a.version, config.FlagVersion, false, config.FlagDescVersion)

	bind(a.v, pf, map[string]string{
		config.KeyConfig:      config.FlagConfig,
		config.KeyAPIURL:      config.FlagAPIURL,
		config.KeyVCardPath:   config.FlagVCard,
		config.KeyLanguage:    config.FlagLang,
		config.KeyOutput:      config.FlagOutput,
		config.KeyConcurrency: config.FlagConcurrency,
		config.KeyTimeout:     config.FlagTimeout,
	})

	root.AddCommand(
		newSyncCmd(a),
		newPreviewCmd(a),
		newLoginCmd(a),
		newServeCmd(a),
	)
	return root
}

// bind maps settings keys to flags. A flag only overrides the other sources
// when it is set on the command line.
func bind(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind %s flag: %v", flag, err))
		}
	}
}
