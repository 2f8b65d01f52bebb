package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rmax-ai/platformsim/pkg/catalog"
	"github.com/rmax-ai/platformsim/pkg/client"
	"github.com/rmax-ai/platformsim/pkg/scoring"
)

func newComponentCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "component",
		Aliases: []string{"c"},
		Short:   "Add, change and remove architecture components",
	}

	var id, name, configPath string
	add := &cobra.Command{
		Use:   "add <type>",
		Short: "Add a component with its template defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.ComponentRequest{ID: id, Type: catalog.ComponentType(args[0]), Name: name}
			if configPath != "" {
				cfg, err := readComponentConfig(configPath)
				if err != nil {
					return err
				}
				req.Config = &cfg
			}
			comp, err := c.client().AddComponent(cmd.Context(), req)
			if err != nil {
				return explain(err)
			}
			return c.print(cmd, comp, func(w io.Writer) { printComponent(w, comp) })
		},
	}
	add.Flags().StringVar(&id, "id", "", "component id (generated when empty)")
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&configPath, "config", "", "YAML or JSON component config")

	var newName, updateConfig string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename a component or replace its config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var u scoring.ComponentUpdate
			if cmd.Flags().Changed("name") {
				u.Name = &newName
			}
			if updateConfig != "" {
				cfg, err := readComponentConfig(updateConfig)
				if err != nil {
					return err
				}
				u.Config = &cfg
			}
			if u.Name == nil && u.Config == nil {
				return fmt.Errorf("nothing to update: pass --name or --config")
			}
			comp, err := c.client().UpdateComponent(cmd.Context(), args[0], u)
			if err != nil {
				return explain(err)
			}
			return c.print(cmd, comp, func(w io.Writer) { printComponent(w, comp) })
		},
	}
	update.Flags().StringVar(&newName, "name", "", "new display name")
	update.Flags().StringVar(&updateConfig, "config", "", "YAML or JSON component config")

	rm := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove a component and its issues",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client().RemoveComponent(cmd.Context(), args[0]); err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Component %s removed\n", args[0])
			return nil
		},
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List components with their scores",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.client().Simulation(cmd.Context())
			if err != nil {
				return explain(err)
			}
			return c.print(cmd, st.Components, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tTYPE\tNAME\tSEC\tPERF\tREL\tCOST\tISSUES")
				for _, comp := range st.Components {
					fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%.0f\t%.0f\t%.0f\t%d\n",
						comp.ID, comp.Type, comp.Name,
						comp.Metrics.Security, comp.Metrics.Performance, comp.Metrics.Reliability,
						comp.Metrics.Cost, len(comp.Issues))
				}
			})
		},
	}

	cmd.AddCommand(add, update, rm, list)
	return cmd
}

func readComponentConfig(path string) (catalog.ComponentConfig, error) {
	var cfg catalog.ComponentConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	// JSON is valid YAML, so one decoder serves both
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

func printComponent(w io.Writer, comp scoring.Component) {
	fmt.Fprintf(w, "Component\t%s (%s)\n", comp.ID, comp.Type)
	fmt.Fprintf(w, "Name\t%s\n", comp.Name)
	fmt.Fprintf(w, "Scores\tsecurity %.0f\tperformance %.0f\treliability %.0f\n",
		comp.Metrics.Security, comp.Metrics.Performance, comp.Metrics.Reliability)
	fmt.Fprintf(w, "Cost\t%.0f\tcomplexity %.0f\n", comp.Metrics.Cost, comp.Metrics.Complexity)
	for _, is := range comp.Issues {
		fmt.Fprintf(w, "Issue\t%s\t[%s] %s\n", is.ID, strings.ToUpper(string(is.Severity)), is.Title)
	}
}

func newIssueCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Inspect and resolve issues",
	}

	var severity string
	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List active issues",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			issues, err := c.client().Issues(cmd.Context(), scoring.Severity(severity))
			if err != nil {
				return explain(err)
			}
			return c.print(cmd, issues, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tSEVERITY\tTYPE\tCOMPONENT\tTITLE")
				for _, is := range issues {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", is.ID, is.Severity, is.Type, is.Component, is.Title)
				}
			})
		},
	}
	list.Flags().StringVar(&severity, "severity", "", "only issues of this severity")

	var later bool
	resolve := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve an issue now, or schedule the fix with --later",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client().ResolveIssue(cmd.Context(), args[0], !later); err != nil {
				return explain(err)
			}
			if later {
				fmt.Fprintf(cmd.OutOrStdout(), "Fix for %s scheduled\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Issue %s resolved\n", args[0])
			}
			return nil
		},
	}
	resolve.Flags().BoolVar(&later, "later", false, "schedule the fix instead of applying it now")

	cmd.AddCommand(list, resolve)
	return cmd
}

func newCheckpointCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "checkpoint",
		Aliases: []string{"cp"},
		Short:   "Run quality gates",
	}

	table := func(cps []scoring.Checkpoint) func(w io.Writer) {
		return func(w io.Writer) {
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tCOMPONENT")
			for _, cp := range cps {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", cp.ID, cp.Name, checkpointStatus(cp), cp.Component)
			}
		}
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Evaluate every checkpoint against every component",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cps, err := c.client().EvaluatePipeline(cmd.Context())
			if err != nil {
				return explain(err)
			}
			return c.print(cmd, cps, table(cps))
		},
	}

	eval := &cobra.Command{
		Use:   "eval <type> <component-id>",
		Short: "Evaluate one checkpoint type against one component",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cp, err := c.client().EvaluateCheckpoint(cmd.Context(), scoring.CheckpointType(args[0]), args[1])
			if err != nil {
				return explain(err)
			}
			return c.print(cmd, cp, table([]scoring.Checkpoint{cp}))
		},
	}

	cmd.AddCommand(run, eval)
	return cmd
}

func checkpointStatus(cp scoring.Checkpoint) string {
	switch {
	case cp.Running:
		return "running"
	case cp.Passed:
		return "passed"
	default:
		return "failed"
	}
}
