package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sansecao/spec-workflow-mcp-pro/model"
)

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect and capture approval snapshots",
	}
	cmd.AddCommand(
		newSnapshotListCmd(a),
		newSnapshotShowCmd(a),
		newSnapshotCaptureCmd(a),
	)
	return cmd
}

func newSnapshotListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <approval-id>",
		Short: "List snapshot versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := a.service()
			if err != nil {
				return err
			}
			snapshots, err := srv.Approvals().Versions(contextOf(cmd), args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.output, snapshots, func(w io.Writer) error {
				for _, snap := range snapshots {
					if err := writeSnapshotLine(w, snap); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newSnapshotShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <approval-id> <version>",
		Short: "Show one snapshot with its content",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: invalid version %q", model.ErrValidation, args[1])
			}
			srv, err := a.service()
			if err != nil {
				return err
			}
			snap, err := srv.Approvals().Version(contextOf(cmd), args[0], version)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.output, snap, func(w io.Writer) error {
				if err := writeSnapshotLine(w, snap); err != nil {
					return err
				}
				_, err := io.WriteString(w, snap.Content)
				return err
			})
		},
	}
}

func newSnapshotCaptureCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "capture <approval-id>",
		Short: "Capture a manual snapshot of the current artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := a.service()
			if err != nil {
				return err
			}
			snap, err := srv.Approvals().CaptureSnapshot(contextOf(cmd), args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.output, snap, func(w io.Writer) error {
				return writeSnapshotLine(w, snap)
			})
		},
	}
}

func writeSnapshotLine(w io.Writer, snap *model.Snapshot) error {
	_, err := fmt.Fprintf(w, "v%d\t%s\t%s\t%s\t%d lines\n",
		snap.Version, snap.Timestamp.Format("2006-01-02T15:04:05Z07:00"), snap.Trigger, snap.Status, snap.FileStats.Lines)
	return err
}
