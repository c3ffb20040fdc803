package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tartampluch/go-contactsync/internal/config"
)

func newLoginCmd(a *app) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   config.CmdLogin,
		Short: config.DescLogin,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if token == "" {
				var err error
				if token, err = a.promptToken(config.MsgPromptToken); err != nil {
					return fmt.Errorf("%s: %w", config.ErrConfirm, err)
				}
			}
			if err := config.StoreToken(token); err != nil {
				return err
			}
			slog.Info(config.MsgTokenStored, config.LogKeyComponent, config.CompMain)
			return a.say(config.MsgTokenStored)
		},
	}
	cmd.Flags().StringVar(&token, config.FlagToken, "", config.FlagDescToken)
	return cmd
}
