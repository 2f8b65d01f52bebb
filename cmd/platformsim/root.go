package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rmax-ai/platformsim/pkg/client"
)

const defaultAPI = "http://127.0.0.1:8095"

// cli carries the persistent flags shared by every subcommand.
type cli struct {
	apiURL     string
	jsonOutput bool
}

func (c *cli) client() *client.Client {
	return client.NewClient(c.apiURL).WithTracePrefix("cli")
}

// print writes v as indented JSON with --json, otherwise calls table.
func (c *cli) print(cmd *cobra.Command, v any, table func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	if c.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	api := os.Getenv("PLATFORMSIM_API")
	if api == "" {
		api = defaultAPI
	}

	root := &cobra.Command{
		Use:           "platformsim",
		Short:         "Drive a platformsim-d simulation from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.apiURL, "api", api, "base URL of platformsim-d")
	root.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "print JSON instead of tables")

	root.AddCommand(
		newVersionCmd(),
		newComponentCmd(c),
		newIssueCmd(c),
		newCheckpointCmd(c),
		newNodeCmd(c),
		newDeployCmd(c),
		newMetricsCmd(c),
		newScenarioCmd(c),
		newEventsCmd(c),
		newReportCmd(c),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "platformsim %s (commit %s, built %s)\n", Version, Commit, BuildTime)
		},
	}
}

// explain turns daemon errors into messages a user can act on.
func explain(err error) error {
	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr) && errors.Is(err, client.ErrRejected):
		return fmt.Errorf("rejected: %s", apiErr.Reason)
	case errors.As(err, &apiErr):
		return err
	case err != nil:
		return fmt.Errorf("%w (is platformsim-d running?)", err)
	}
	return nil
}
