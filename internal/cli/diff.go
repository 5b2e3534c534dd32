package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sansecao/spec-workflow-mcp-pro/service/approval"
	"github.com/sansecao/spec-workflow-mcp-pro/service/diff"
)

func newDiffCmd(a *app) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "diff <approval-id>",
		Short: "Diff two snapshot versions, or a version against the current artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := a.service()
			if err != nil {
				return err
			}
			ctx := contextOf(cmd)
			result, err := srv.Approvals().Diff(ctx, args[0], from, to)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.output, result, func(w io.Writer) error {
				if result.IsEmpty() {
					_, err := fmt.Fprintln(w, "No changes.")
					return err
				}
				request, err := srv.Approvals().Get(ctx, args[0])
				if err != nil {
					return err
				}
				patch, err := diff.Unified(result, request.FilePath)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(w, "%d additions, %d deletions, %d changes\n%s", result.Additions, result.Deletions, result.Changes, patch)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "1", "Base snapshot version")
	cmd.Flags().StringVar(&to, "to", approval.RefCurrent, "Target snapshot version or \"current\"")
	return cmd
}
