package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pocotu/oficri-areas/modules/areas/presentation/mappers"
	"github.com/pocotu/oficri-areas/modules/areas/services"
)

func newTreeCmd(c *cli) *cobra.Command {
	var (
		tenant          string
		root            string
		includeInactive bool
		format          string
	)
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the area tree of a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseTenant(tenant)
			if err != nil {
				return err
			}
			rootID, err := parseOptionalIDFlag("root", root)
			if err != nil {
				return err
			}
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "text" && format != "json" {
				return withCode(exitUsage, fmt.Errorf("unsupported --format: %s", format))
			}

			ctx, svc, cleanup, err := c.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			roots, err := svc.GetTree(ctx, tenantID, services.TreeQuery{RootID: rootID, IncludeInactive: includeInactive})
			if err != nil {
				return serviceExitCode(err)
			}
			for _, n := range mappers.TreeToViewModel(roots, nil).Nodes {
				if format == "json" {
					if err := writeJSONLine(c.out, n); err != nil {
						return err
					}
					continue
				}
				marker := ""
				if !n.IsActive {
					marker = " (inactive)"
				}
				fmt.Fprintf(c.out, "%s%s%s\t%s\n", strings.Repeat("  ", n.Depth), n.Label, marker, n.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant UUID (required)")
	cmd.Flags().StringVar(&root, "root", "", "Only print the subtree under this area")
	cmd.Flags().BoolVar(&includeInactive, "include-inactive", false, "Include inactive areas")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text|json")
	return cmd
}

func newPathCmd(c *cli) *cobra.Command {
	var tenant, node string
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the root-first path of an area",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseTenant(tenant)
			if err != nil {
				return err
			}
			nodeID, err := parseIDFlag("id", node)
			if err != nil {
				return err
			}

			ctx, svc, cleanup, err := c.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := svc.GetPath(ctx, tenantID, nodeID)
			if err != nil {
				return serviceExitCode(err)
			}
			return writeJSONLine(c.out, res)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant UUID (required)")
	cmd.Flags().StringVar(&node, "id", "", "Area UUID (required)")
	return cmd
}

func newCheckCmd(c *cli) *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report dangling parents and cycles; exits 2 when issues are found",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseTenant(tenant)
			if err != nil {
				return err
			}

			ctx, svc, cleanup, err := c.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			issues, err := svc.Check(ctx, tenantID)
			if err != nil {
				return serviceExitCode(err)
			}
			for _, issue := range issues {
				if err := writeJSONLine(c.out, issue); err != nil {
					return err
				}
			}

			type summary struct {
				Status   string `json:"status"`
				TenantID string `json:"tenant_id"`
				Issues   int    `json:"issues_total"`
			}
			status := "ok"
			if len(issues) > 0 {
				status = "issues_found"
			}
			if err := writeJSONLine(c.out, summary{Status: status, TenantID: tenantID.String(), Issues: len(issues)}); err != nil {
				return err
			}
			if len(issues) > 0 {
				return withCode(exitValidation, fmt.Errorf("%d hierarchy issue(s) found", len(issues)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant UUID (required)")
	return cmd
}
