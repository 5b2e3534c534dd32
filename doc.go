// Package specflow provides a human-in-the-loop approval workflow for spec
// documents.
//
// An approval request names an artifact inside a project. Every lifecycle
// event captures a versioned snapshot of the artifact so reviewers can diff
// revisions, and every change is pushed to connected dashboards through a
// realtime hub. Automation clients poll the status report until a human
// decides.
//
// End-users typically interact with the module through the Service façade
// exposed by the root package:
//
//	srv, _ := specflow.New(specflow.WithProjectPath("."))
//	_ = srv.Start(ctx)
//	defer srv.Stop()
//	req, _ := srv.Approvals().Create(ctx, &approval.CreateInput{...})
//	report, _ := srv.Approvals().Status(ctx, req.ID)
//
// For more details see the individual sub-packages.
package specflow
