package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pocotu/oficri-areas/modules/areas/services"
)

// writePlan prints one JSON line per operation followed by a summary line.
func writePlan(c *cli, action string, res *services.MutationResult) error {
	for i, op := range res.Plan.Ops {
		type opLine struct {
			Seq      int        `json:"seq"`
			Kind     string     `json:"kind"`
			NodeID   uuid.UUID  `json:"node_id"`
			ParentID *uuid.UUID `json:"parent_id"`
			Summary  string     `json:"summary"`
		}
		if err := writeJSONLine(c.out, opLine{Seq: i, Kind: string(op.Kind), NodeID: op.NodeID, ParentID: op.ParentID, Summary: op.String()}); err != nil {
			return err
		}
	}
	type summary struct {
		Status string `json:"status"`
		Action string `json:"action"`
		DryRun bool   `json:"dry_run"`
		Ops    int    `json:"ops"`
		Events int    `json:"events"`
	}
	return writeJSONLine(c.out, summary{
		Status: "ok",
		Action: action,
		DryRun: res.DryRun,
		Ops:    res.Plan.Len(),
		Events: len(res.GeneratedEvents),
	})
}

func newCreateCmd(c *cli) *cobra.Command {
	var tenant, node, parent, label string
	var inactive bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an area",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseTenant(tenant)
			if err != nil {
				return err
			}
			in := services.CreateAreaInput{Label: label}
			if node != "" {
				if in.ID, err = parseIDFlag("id", node); err != nil {
					return err
				}
			}
			if in.ParentID, err = parseOptionalIDFlag("parent", parent); err != nil {
				return err
			}
			if inactive {
				active := false
				in.IsActive = &active
			}

			ctx, svc, cleanup, err := c.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := svc.CreateArea(ctx, tenantID, cliRequestID(), uuid.Nil, in)
			if err != nil {
				return serviceExitCode(err)
			}
			return writePlan(c, "create", res)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant UUID (required)")
	cmd.Flags().StringVar(&node, "id", "", "Area UUID (generated when empty)")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent area UUID (root when empty)")
	cmd.Flags().StringVar(&label, "label", "", "Area label (required)")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Create the area as inactive")
	return cmd
}

func newMoveCmd(c *cli) *cobra.Command {
	var tenant, node, target, position string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "move",
		Short: "Move an area relative to a target (before|after|inside|root)",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseTenant(tenant)
			if err != nil {
				return err
			}
			nodeID, err := parseIDFlag("id", node)
			if err != nil {
				return err
			}
			targetID, err := parseOptionalIDFlag("target", target)
			if err != nil {
				return err
			}

			ctx, svc, cleanup, err := c.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := svc.MoveArea(ctx, tenantID, cliRequestID(), uuid.Nil, services.MoveAreaInput{
				NodeID:   nodeID,
				TargetID: targetID,
				Position: position,
				DryRun:   dryRun,
			})
			if err != nil {
				return serviceExitCode(err)
			}
			return writePlan(c, "move", res)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant UUID (required)")
	cmd.Flags().StringVar(&node, "id", "", "Area UUID (required)")
	cmd.Flags().StringVar(&target, "target", "", "Target area UUID (not needed for --position root)")
	cmd.Flags().StringVar(&position, "position", "inside", "before|after|inside|root")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plan without applying it")
	return cmd
}

func newDeleteCmd(c *cli) *cobra.Command {
	var tenant, node string
	var cascade, dryRun bool
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an area, optionally with its whole subtree",
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

			res, err := svc.DeleteArea(ctx, tenantID, cliRequestID(), uuid.Nil, services.DeleteAreaInput{
				NodeID:  nodeID,
				Cascade: cascade,
				DryRun:  dryRun,
			})
			if err != nil {
				return serviceExitCode(err)
			}
			return writePlan(c, "delete", res)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant UUID (required)")
	cmd.Flags().StringVar(&node, "id", "", "Area UUID (required)")
	cmd.Flags().BoolVar(&cascade, "cascade", false, "Delete descendants first")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plan without applying it")
	return cmd
}
