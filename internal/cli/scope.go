package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"termbase/api/internal/scopelock"
	"termbase/api/internal/sequencing"
)

type ScopeOptions struct {
	*RootOptions
	Kind  string
	Scope string
}

func (o *ScopeOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Kind, "kind", "", "glossary|usecase|feature|feature_policy")
	cmd.Flags().StringVar(&o.Scope, "scope", "", "parent id of the list (project, actor, usecase or feature)")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("scope")
}

func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScopeOptions{RootOptions: rootOpts}
	var sortKey string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the persisted order of a list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch sequencing.SortKey(sortKey) {
			case "", sequencing.SortBySequenceKey, sequencing.SortByName, sequencing.SortByUpdatedAt:
			default:
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid --sort %q", sortKey))
			}

			ctx := cmd.Context()
			s, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			coord, kind, err := opts.coordinator(s, opts.Kind, opts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			items, err := coord.ListOrdered(ctx, opts.Scope)
			if err != nil {
				return WrapExitError(ExitFailure, "list", err)
			}
			return writeOrder(cmd.OutOrStdout(), opts.Format, orderOutput{
				Kind:    string(kind),
				ScopeID: opts.Scope,
				Items:   sequencing.SortedBy(items, sequencing.SortKey(sortKey)),
			})
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&sortKey, "sort", "", "presentation order: sequence|name|updated_at")
	return cmd
}

// NewReorderCommand moves one item through a ListView, so the printed result
// is what a client would show after reconciling with the server.
func NewReorderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScopeOptions{RootOptions: rootOpts}
	var itemID string
	var index int

	cmd := &cobra.Command{
		Use:   "reorder",
		Short: "Move an item to a new zero-based position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			coord, kind, err := opts.coordinator(s, opts.Kind, opts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			locks, closeLocks, err := opts.locker()
			if err != nil {
				return err
			}
			defer closeLocks()

			release, err := locks.Acquire(ctx, scopelock.Key(string(kind), opts.Scope))
			if errors.Is(err, scopelock.ErrHeld) {
				return WrapExitError(ExitFailure, "reorder refused", sequencing.ErrReorderInProgress)
			}
			if err != nil {
				return WrapExitError(ExitFailure, "acquire scope lock", err)
			}
			defer release(ctx)

			current, err := coord.ListOrdered(ctx, opts.Scope)
			if err != nil {
				return WrapExitError(ExitFailure, "list", err)
			}

			var notices []sequencing.Notice
			view := sequencing.NewListView(opts.Scope, current, coord, func(n sequencing.Notice) {
				notices = append(notices, n)
			})
			items, moveErr := view.Move(ctx, itemID, index)

			for _, n := range notices {
				switch n.Kind {
				case sequencing.NoticeCorrected:
					fmt.Fprintln(cmd.ErrOrStderr(), "notice: the list was updated to match what was saved")
				case sequencing.NoticeFailed:
					fmt.Fprintln(cmd.ErrOrStderr(), "error: the move could not be saved; the previous order is shown")
				}
			}

			corrected := errors.Is(moveErr, sequencing.ErrPartialReorder)
			if err := writeOrder(cmd.OutOrStdout(), opts.Format, orderOutput{
				Kind:      string(kind),
				ScopeID:   opts.Scope,
				Items:     items,
				Corrected: corrected,
			}); err != nil {
				return err
			}
			if moveErr != nil && !corrected {
				return WrapExitError(ExitFailure, "reorder", moveErr)
			}
			return nil
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&itemID, "item", "", "id of the item to move")
	cmd.Flags().IntVar(&index, "index", 0, "zero-based target position; out of range values are clamped")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func NewRepairCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScopeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Renumber a list to 1..N, keeping its current order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			coord, kind, err := opts.coordinator(s, opts.Kind, opts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			locks, closeLocks, err := opts.locker()
			if err != nil {
				return err
			}
			defer closeLocks()

			release, err := locks.Acquire(ctx, scopelock.Key(string(kind), opts.Scope))
			if err != nil {
				return WrapExitError(ExitFailure, "acquire scope lock", err)
			}
			defer release(ctx)

			items, err := coord.Repair(ctx, opts.Scope)
			corrected := errors.Is(err, sequencing.ErrPartialReorder)
			if err != nil && !corrected {
				return WrapExitError(ExitFailure, "repair", err)
			}
			return writeOrder(cmd.OutOrStdout(), opts.Format, orderOutput{
				Kind:      string(kind),
				ScopeID:   opts.Scope,
				Items:     items,
				Corrected: corrected,
			})
		},
	}
	opts.bind(cmd)
	return cmd
}
