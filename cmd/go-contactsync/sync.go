package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tartampluch/go-contactsync/internal/config"
	"github.com/tartampluch/go-contactsync/internal/contact"
	"github.com/tartampluch/go-contactsync/internal/directory"
	"github.com/tartampluch/go-contactsync/internal/engine"
	"github.com/tartampluch/go-contactsync/internal/remote"
	"github.com/tartampluch/go-contactsync/internal/report"
)

func newSyncCmd(a *app) *cobra.Command {
	var dryRun, yes bool
	cmd := &cobra.Command{
		Use:   config.CmdSync,
		Short: config.DescSync,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSync(cmd.Context(), dryRun, yes)
		},
	}
	cmd.Flags().BoolVar(&dryRun, config.FlagDryRun, false, config.FlagDescDryRun)
	cmd.Flags().BoolVarP(&yes, config.FlagYes, config.FlagShortYes, false, config.FlagDescYes)
	return cmd
}

func newPreviewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   config.CmdPreview,
		Short: config.DescPreview,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSync(cmd.Context(), true, false)
		},
	}
}

// session holds what one reconciliation run needs.
type session struct {
	source   remote.Source
	engine   *engine.Engine
	renderer *report.Renderer
}

// newSession validates the settings and builds the collaborators.
func (a *app) newSession() (*session, error) {
	s := a.settings
	if err := s.Validate(); err != nil {
		return nil, err
	}

	src, err := remote.NewHTTPSource(s.APIURL, s.Token)
	if err != nil {
		return nil, err
	}
	dir, err := directory.OpenVCard(s.VCardPath)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(src, dir,
		engine.WithTimeout(s.Timeout),
		engine.WithConcurrency(s.Concurrency),
	)
	if err != nil {
		return nil, err
	}

	return &session{
		source:   src,
		engine:   eng,
		renderer: report.NewRenderer(s.Language),
	}, nil
}

// pending lists the connections to reconcile.
func (ss *session) pending(ctx context.Context) ([]contact.ConnectionRef, error) {
	refs, err := ss.source.ListOutOfSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrListPending, err)
	}
	return refs, nil
}

// runSync previews the pending changes and, unless dryRun, commits them
// once the user has approved (or yes is set).
func (a *app) runSync(ctx context.Context, dryRun, yes bool) error {
	ss, err := a.newSession()
	if err != nil {
		return err
	}
	log := slog.With(config.LogKeyComponent, config.CompMain)

	refs, err := ss.pending(ctx)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return a.say(ss.renderer.Message(config.TKeyConfirmNothing))
	}

	log.Info(config.MsgSyncStarted, config.LogKeyCount, len(refs), config.LogKeyDryRun, dryRun)

	if !yes || dryRun {
		preview, err := ss.engine.Reconcile(ctx, refs, true)
		if err != nil {
			return err
		}
		if err := ss.renderer.Render(a.out, a.settings.Output, preview); err != nil {
			return err
		}
		if dryRun {
			return nil
		}

		ok, err := a.confirm(
			ss.renderer.Message(config.TKeyConfirmTitle),
			ss.renderer.Message(config.TKeyConfirmYes),
			ss.renderer.Message(config.TKeyConfirmNo),
		)
		if err != nil {
			return fmt.Errorf("%s: %w", config.ErrConfirm, err)
		}
		if !ok {
			log.Info(config.MsgPromptAborted)
			return a.say(ss.renderer.Message(config.TKeyConfirmAborted))
		}
	}

	summary, err := ss.engine.Reconcile(ctx, refs, false)
	if err != nil {
		return err
	}
	log.Info(config.MsgSyncSuccess,
		config.LogKeyResults, len(summary.Results),
		config.LogKeyChanges, summary.ChangeCount(),
	)
	return ss.renderer.Render(a.out, a.settings.Output, summary)
}

func (a *app) say(msg string) error {
	_, err := io.WriteString(a.out, msg+"\n")
	return err
}
