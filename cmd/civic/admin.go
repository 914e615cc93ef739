package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"civicconnect.org/internal/auth"
	"civicconnect.org/internal/client"
	"civicconnect.org/internal/guard"
	"civicconnect.org/internal/report"
	"civicconnect.org/internal/screen"
)

func newAdminCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Municipal staff tools",
	}
	cmd.AddCommand(
		newDashboardCmd(v),
		newStatusCmd(v),
		newPatchCmd(v),
		newRoleCmd(v),
	)
	return cmd
}

func newDashboardCmd(v *viper.Viper) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "List reports with status counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFilter(filter)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, v)
			if err != nil {
				return err
			}
			s := a.state(cmd.Context())
			if ok, err := a.guarded(guard.Admin(s)); !ok {
				return err
			}
			rows, err := a.fetch(cmd.Context())
			if err != nil {
				return err
			}
			now := time.Now()
			d, view, err := screen.NewAdminDashboard(nil, a.loc).View(s, rows, f, now)
			if err != nil {
				return err
			}
			if ok, err := a.guarded(d); !ok {
				return err
			}
			return screen.RenderDashboard(a.out, view, now)
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "all", "all, urgent, unassigned or today")
	return cmd
}

func newStatusCmd(v *viper.Viper) *cobra.Command {
	var assignee string
	cmd := &cobra.Command{
		Use:   "status <report-id> <status>",
		Short: "Move a report through its lifecycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := report.ParseStatus(args[1])
			if err != nil {
				return err
			}
			a, err := newApp(cmd, v)
			if err != nil {
				return err
			}
			repo, err := a.repository()
			if err != nil {
				return err
			}
			var as *string
			if assignee != "" {
				as = &assignee
			}
			ctx, cancel := a.ctx(cmd.Context())
			defer cancel()
			s := a.state(ctx)
			updated, err := screen.NewAdminDashboard(repo, a.loc).UpdateStatus(ctx, s, args[0], status, as)
			if err != nil {
				if d := guard.Admin(s); !d.Allowed() {
					_ = screen.RenderDecision(a.out, d)
				}
				return err
			}
			fmt.Fprintf(a.out, "%s: %s\n", updated.ID, screen.StatusLabel(updated.Status))
			return nil
		},
	}
	cmd.Flags().StringVar(&assignee, "assignee", "", "assign the report to this user id")
	return cmd
}

func newPatchCmd(v *viper.Viper) *cobra.Command {
	var priority, department, notes, assignee string
	cmd := &cobra.Command{
		Use:   "patch <report-id>",
		Short: "Set priority, department, notes or assignee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p report.Patch
			flags := cmd.Flags()
			if flags.Changed("priority") {
				pr, err := report.ParsePriority(priority)
				if err != nil {
					return err
				}
				p.Priority = &pr
			}
			if flags.Changed("department") {
				p.Department = &department
			}
			if flags.Changed("notes") {
				p.InternalNotes = &notes
			}
			if flags.Changed("assignee") {
				p.AssigneeID = &assignee
			}
			if p.Empty() {
				return fmt.Errorf("%w: nothing to change", report.ErrInvalidInput)
			}
			a, err := newApp(cmd, v)
			if err != nil {
				return err
			}
			if ok, err := a.guarded(guard.Admin(a.state(cmd.Context()))); !ok {
				return err
			}
			ctx, cancel := a.ctx(cmd.Context())
			defer cancel()
			updated, err := a.client.PatchReport(ctx, args[0], p)
			if err != nil {
				a.toaster.Error(screen.MsgUnexpected)
				return err
			}
			a.toaster.Success("Report updated")
			fmt.Fprintf(a.out, "%s: %s, %s\n", updated.ID, updated.Priority, screen.StatusLabel(updated.Status))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&priority, "priority", "", "low, medium, high or critical")
	flags.StringVar(&department, "department", "", "responsible department")
	flags.StringVar(&notes, "notes", "", "internal notes, visible to staff only")
	flags.StringVar(&assignee, "assignee", "", "assignee user id")
	return cmd
}

func newRoleCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "role <user-id> <role>",
		Short: "Assign a role to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := auth.ParseRole(args[1])
			if err != nil {
				return err
			}
			a, err := newApp(cmd, v)
			if err != nil {
				return err
			}
			if ok, err := a.guarded(guard.Admin(a.state(cmd.Context()))); !ok {
				return err
			}
			ctx, cancel := a.ctx(cmd.Context())
			defer cancel()
			if err := a.client.AssignRole(ctx, args[0], role); err != nil {
				if client.StatusOf(err) == http.StatusForbidden {
					a.toaster.Error("Admin access required.")
				}
				return err
			}
			a.toaster.Success(fmt.Sprintf("%s is now %s", args[0], screen.RoleBadge(role)))
			return nil
		},
	}
}

func newHealthCmd(v *viper.Viper) *cobra.Command {
	var target, service string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query the backend's gRPC health service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" {
				target = v.GetString("grpc")
			}
			if target == "" {
				return errors.New("no gRPC address: pass --grpc or set CIVIC_GRPC")
			}
			h, err := client.DialHealth(target)
			if err != nil {
				return err
			}
			defer h.Close()
			timeout := v.GetDuration("timeout")
			ctx, cancel := client.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			st, err := h.Check(ctx, service)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", target, st)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "grpc", "", "health service address, host:port")
	cmd.Flags().StringVar(&service, "service", "", "service name, empty for the whole server")
	return cmd
}
