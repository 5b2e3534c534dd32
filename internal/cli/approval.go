package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sansecao/spec-workflow-mcp-pro/model"
	"github.com/sansecao/spec-workflow-mcp-pro/service/approval"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dao"
)

func newApprovalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approval",
		Short: "Manage approval requests",
	}
	cmd.AddCommand(
		newApprovalRequestCmd(a),
		newApprovalStatusCmd(a),
		newApprovalListCmd(a),
		newApprovalDecideCmd(a),
		newApprovalCommentCmd(a),
		newApprovalDeleteCmd(a),
	)
	return cmd
}

func newApprovalRequestCmd(a *app) *cobra.Command {
	input := &approval.CreateInput{}
	var approvalType, category string
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Request approval of a document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Type = model.Type(approvalType)
			input.Category = model.Category(category)
			srv, err := a.service()
			if err != nil {
				return err
			}
			request, err := srv.Approvals().Create(contextOf(cmd), input)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.output, request, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Approval request created: %s\nStatus: %s\nPoll with: specflow approval status %s\n", request.ID, request.Status, request.ID)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&input.Title, "title", "", "Title shown to reviewers")
	cmd.Flags().StringVar(&input.FilePath, "file", "", "Artifact path relative to the project")
	cmd.Flags().StringVar(&input.CategoryName, "category-name", "", "Spec or steering name")
	cmd.Flags().StringVar(&approvalType, "type", string(model.TypeDocument), "Approval type (document|action)")
	cmd.Flags().StringVar(&category, "category", string(model.CategorySpec), "Category (spec|steering)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("category-name")
	return cmd
}

func newApprovalStatusCmd(a *app) *cobra.Command {
	var wait bool
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Show the status report of an approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := a.service()
			if err != nil {
				return err
			}
			ctx := contextOf(cmd)
			if wait {
				var cancel context.CancelFunc
				if timeout > 0 {
					ctx, cancel = context.WithTimeout(ctx, timeout)
					defer cancel()
				}
				if _, err = approval.WaitForDecision(ctx, srv.Approvals(), args[0], approval.DefaultPollConfig()); err != nil {
					return err
				}
			}
			report, err := srv.Approvals().Status(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.output, report, func(w io.Writer) error {
				return writeReport(w, report)
			})
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until a reviewer decides")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Maximum time to wait (0 waits forever)")
	return cmd
}

func writeReport(w io.Writer, report *approval.Report) error {
	if _, err := fmt.Fprintf(w, "%s\n%s (%s)\n", report.Message(), report.Title, report.ApprovalID); err != nil {
		return err
	}
	for _, step := range report.NextSteps {
		if _, err := fmt.Fprintf(w, "- %s\n", step); err != nil {
			return err
		}
	}
	return nil
}

func newApprovalListCmd(a *app) *cobra.Command {
	var status, categoryNames []string
	var pending bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List approval requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := a.service()
			if err != nil {
				return err
			}
			ctx := contextOf(cmd)
			var requests []*model.Request
			if pending {
				requests, err = approval.ListPending(ctx, srv.Approvals(), categoryNames...)
			} else {
				var parameters []*dao.Parameter
				if len(status) > 0 {
					parameters = append(parameters, dao.NewParameter(dao.ParamStatus, status...))
				}
				if len(categoryNames) > 0 {
					parameters = append(parameters, dao.NewParameter(dao.ParamCategoryName, categoryNames...))
				}
				requests, err = srv.Approvals().List(ctx, parameters...)
			}
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.output, requests, func(w io.Writer) error {
				if len(requests) == 0 {
					_, err := fmt.Fprintln(w, "No approvals.")
					return err
				}
				for _, request := range requests {
					if _, err := fmt.Fprintf(w, "%s\t%s\t%s/%s\t%s\n", request.ID, request.Status, request.Category, request.CategoryName, request.Title); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&status, "status", nil, "Filter by status")
	cmd.Flags().StringSliceVar(&categoryNames, "category-name", nil, "Filter by spec or steering name")
	cmd.Flags().BoolVar(&pending, "pending", false, "Only pending approvals")
	return cmd
}

func newApprovalDecideCmd(a *app) *cobra.Command {
	input := &approval.DecisionInput{}
	var status string
	var comments []string
	cmd := &cobra.Command{
		Use:   "decide <id>",
		Short: "Record a reviewer decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Status = model.Status(strings.TrimSpace(status))
			for _, text := range comments {
				input.Comments = append(input.Comments, model.Comment{Type: model.CommentGeneral, Comment: text})
			}
			srv, err := a.service()
			if err != nil {
				return err
			}
			request, err := srv.Approvals().Decide(contextOf(cmd), args[0], input)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.output, request, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Approval %s %s.\n", request.ID, request.Status)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Decision (approved|rejected|needs-revision)")
	cmd.Flags().StringVar(&input.Response, "response", "", "Response to the requester")
	cmd.Flags().StringVar(&input.Annotations, "annotations", "", "Reviewer notes")
	cmd.Flags().StringArrayVar(&comments, "comment", nil, "General comment; repeatable")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func newApprovalCommentCmd(a *app) *cobra.Command {
	comment := model.Comment{}
	cmd := &cobra.Command{
		Use:   "comment <id>",
		Short: "Add a comment to a pending approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := a.service()
			if err != nil {
				return err
			}
			request, err := srv.Approvals().AppendComment(contextOf(cmd), args[0], comment)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.output, request, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Approval %s has %d comments.\n", request.ID, len(request.Comments))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&comment.Comment, "text", "", "Comment text")
	cmd.Flags().StringVar(&comment.SelectedText, "selection", "", "Selected document text the comment refers to")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func newApprovalDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an approved request and its snapshot history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := a.service()
			if err != nil {
				return err
			}
			deleted, err := srv.Approvals().Delete(contextOf(cmd), args[0])
			if err != nil {
				return err
			}
			result := map[string]interface{}{"id": args[0], "deleted": deleted}
			return render(cmd.OutOrStdout(), a.output, result, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Approval %s deleted.\n", args[0])
				return err
			})
		},
	}
}
