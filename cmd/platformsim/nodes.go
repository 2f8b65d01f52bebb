package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmax-ai/platformsim/pkg/catalog"
	"github.com/rmax-ai/platformsim/pkg/hierarchy"
)

func newNodeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "node",
		Aliases: []string{"n"},
		Short:   "Build the infrastructure hierarchy",
	}

	var parent, name string
	add := &cobra.Command{
		Use:   "add <type>",
		Short: "Insert a node below --parent (regions need none)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := c.client().AddNode(cmd.Context(), hierarchy.NodeSpec{Type: catalog.NodeType(args[0]), Name: name}, parent)
			if err != nil {
				return explain(err)
			}
			return c.print(cmd, n, func(w io.Writer) {
				fmt.Fprintf(w, "Node\t%s\n", n.ID)
				fmt.Fprintf(w, "Type\t%s (%s)\n", n.Type, n.Layer)
				fmt.Fprintf(w, "Name\t%s\n", n.Name)
				if n.ParentID != "" {
					fmt.Fprintf(w, "Parent\t%s\n", n.ParentID)
				}
			})
		},
	}
	add.Flags().StringVar(&parent, "parent", "", "parent node id")
	add.Flags().StringVar(&name, "name", "", "display name")

	rm := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Delete a node, its subtree and their deployments",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client().DeleteNode(cmd.Context(), args[0]); err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Node %s deleted\n", args[0])
			return nil
		},
	}

	var deep bool
	resources := &cobra.Command{
		Use:   "resources <id>",
		Short: "Show capacity and allocation of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.client().NodeResources(cmd.Context(), args[0], deep)
			if err != nil {
				return explain(err)
			}
			r := res.Resources
			return c.print(cmd, res, func(w io.Writer) {
				fmt.Fprintln(w, "RESOURCE\tALLOCATED\tTOTAL")
				fmt.Fprintf(w, "cpu\t%.1f\t%.1f\n", r.AllocatedCPU, r.CPU)
				fmt.Fprintf(w, "memory\t%.0f\t%.0f\n", r.AllocatedMemory, r.Memory)
				fmt.Fprintf(w, "storage\t%.0f\t%.0f\n", r.AllocatedStorage, r.Storage)
				fmt.Fprintf(w, "network\t%.0f\t%.0f\n", r.AllocatedNetwork, r.Network)
				fmt.Fprintf(w, "utilization\t%.1f%%\t\n", res.Utilization)
			})
		},
	}
	resources.Flags().BoolVar(&deep, "deep", false, "count the whole subtree")

	var layer string
	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List nodes",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.client().Platform(cmd.Context())
			if err != nil {
				return explain(err)
			}
			nodes := make([]hierarchy.Node, 0, len(st.Nodes))
			for _, n := range st.Nodes {
				if layer == "" || string(n.Layer) == layer {
					nodes = append(nodes, n)
				}
			}
			return c.print(cmd, nodes, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tLAYER\tTYPE\tNAME\tPARENT\tHEALTH")
				for _, n := range nodes {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", n.ID, n.Layer, n.Type, n.Name, n.ParentID, n.Status.Health)
				}
			})
		},
	}
	list.Flags().StringVar(&layer, "layer", "", "only nodes of this layer")

	health := &cobra.Command{
		Use:   "health <id> <healthy|degraded|unhealthy>",
		Short: "Set the health of a node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := c.client().SetHealth(cmd.Context(), args[0], hierarchy.Health(args[1]))
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Node %s is %s\n", n.ID, n.Status.Health)
			return nil
		},
	}

	cmd.AddCommand(add, rm, resources, list, health)
	return cmd
}

func newDeployCmd(c *cli) *cobra.Command {
	var env string
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "deploy <application-id> <target-id>",
		Short: "Deploy an application node onto a platform or service node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := c.client()
			d, err := api.Deploy(cmd.Context(), args[0], args[1], env)
			if err != nil {
				return explain(err)
			}
			if wait > 0 {
				ctx, cancel := context.WithTimeout(cmd.Context(), wait)
				defer cancel()
				if d, err = api.WaitForDeployment(ctx, d.ID); err != nil {
					return explain(err)
				}
			}
			return c.print(cmd, d, func(w io.Writer) {
				fmt.Fprintf(w, "Deployment\t%s\n", d.ID)
				fmt.Fprintf(w, "Application\t%s -> %s\n", d.ApplicationID, d.TargetID)
				fmt.Fprintf(w, "Environment\t%s\n", d.Environment)
				fmt.Fprintf(w, "Status\t%s\n", d.Status)
			})
		},
	}
	cmd.Flags().StringVar(&env, "env", "production", "environment label")
	cmd.Flags().DurationVar(&wait, "wait", 0, "wait up to this long for the deployment to run")
	return cmd
}

func newMetricsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show global and platform metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api := c.client()
			sim, err := api.Simulation(cmd.Context())
			if err != nil {
				return explain(err)
			}
			plat, err := api.Platform(cmd.Context())
			if err != nil {
				return explain(err)
			}
			out := struct {
				Global   any `json:"global"`
				Platform any `json:"platform"`
			}{sim.Metrics, plat.Metrics}
			m, p := sim.Metrics, plat.Metrics
			return c.print(cmd, out, func(w io.Writer) {
				fmt.Fprintln(w, "METRIC\tVALUE")
				fmt.Fprintf(w, "userSatisfaction\t%.1f\n", m.UserSatisfaction)
				fmt.Fprintf(w, "developerVelocity\t%.1f\n", m.DeveloperVelocity)
				fmt.Fprintf(w, "securityScore\t%.1f\n", m.SecurityScore)
				fmt.Fprintf(w, "technicalDebt\t%.1f\n", m.TechnicalDebt)
				fmt.Fprintf(w, "performanceScore\t%.1f\n", m.PerformanceScore)
				fmt.Fprintf(w, "adoptionRate\t%.1f\n", m.AdoptionRate)
				fmt.Fprintf(w, "totalCost\t%.0f\n", m.TotalCost)
				fmt.Fprintf(w, "timeToMarket\t%.1f\n", m.TimeToMarket)
				fmt.Fprintf(w, "platform.totalCost\t%.0f\n", p.TotalCost)
				fmt.Fprintf(w, "platform.applications\t%d\n", p.ApplicationCount)
				fmt.Fprintf(w, "platform.serviceHealth\t%.1f\n", p.ServiceHealth)
				fmt.Fprintf(w, "platform.maturity\t%.1f\n", p.PlatformMaturity)
				fmt.Fprintf(w, "platform.operationalExcellence\t%.1f\n", p.OperationalExcellence)
			})
		},
	}
}
