package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"autoform-mcp/internal/autoform"
	"autoform-mcp/internal/tools"
)

type queryOptions struct {
	limit      int
	activeOnly bool
	outputJSON bool
}

func newQueryCommand(opts *rootOptions) *cobra.Command {
	qo := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query <expression>",
		Short: "Call query_corporate_bodies through an in-process MCP session",
		Example: `  autoform-mcp query "name:Slovenská pošta"
  autoform-mcp query "cin:36631124"
  autoform-mcp query "name:Test" --limit 10 --active-only`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, qo, args[0])
		},
	}
	cmd.Flags().IntVar(&qo.limit, "limit", autoform.DefaultLimit, "maximum number of results (1-20)")
	cmd.Flags().BoolVar(&qo.activeOnly, "active-only", false, "return only active (non-terminated) entities")
	cmd.Flags().BoolVar(&qo.outputJSON, "json", false, "print the raw JSON result")
	return cmd
}

func runQuery(cmd *cobra.Command, opts *rootOptions, qo *queryOptions, expr string) error {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, opts.logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalAwareContext(cmd.Context())
	defer cancel()

	ct, st := mcp.NewInMemoryTransports()
	serverSession, err := a.server.Connect(ctx, st, nil)
	if err != nil {
		return err
	}
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "autoform-mcp-query", Version: version}, nil)
	session, err := client.Connect(ctx, ct, nil)
	if err != nil {
		return err
	}
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name: tools.QueryCorporateBodies,
		Arguments: map[string]any{
			"query":       expr,
			"limit":       qo.limit,
			"active_only": qo.activeOnly,
		},
	})
	if err != nil {
		return err
	}
	text := firstText(res)
	if res.IsError {
		return errors.New(text)
	}

	var result autoform.SearchResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return fmt.Errorf("decode tool result: %w", err)
	}
	if qo.outputJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResults(cmd.OutOrStdout(), result)
	return nil
}

func firstText(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if t, ok := c.(*mcp.TextContent); ok {
			return t.Text
		}
	}
	return ""
}

func printResults(w io.Writer, res autoform.SearchResult) {
	fmt.Fprintf(w, "Found %d result(s):\n\n", res.Count)
	for i, body := range res.Results {
		fmt.Fprintf(w, "[%d] %s\n", i+1, orNA(body.Name))
		fmt.Fprintf(w, "    IČO: %s\n", orNA(body.CIN))
		fmt.Fprintf(w, "    DIČ: %s\n", orNA(body.TIN))
		if body.VATIN != nil && *body.VATIN != "" {
			fmt.Fprintf(w, "    IČ DPH: %s\n", *body.VATIN)
		}
		fmt.Fprintf(w, "    Address: %s\n", orNA(body.FormattedAddress))
		if body.EstablishedOn != nil && *body.EstablishedOn != "" {
			fmt.Fprintf(w, "    Established: %s\n", *body.EstablishedOn)
		}
		if body.TerminatedOn != nil && *body.TerminatedOn != "" {
			fmt.Fprintf(w, "    Terminated: %s\n", *body.TerminatedOn)
		}
		if body.DatahubCorporateBodyURL != nil && *body.DatahubCorporateBodyURL != "" {
			fmt.Fprintf(w, "    DataHub: %s\n", *body.DatahubCorporateBodyURL)
		}
		fmt.Fprintln(w)
	}
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}
	return *s
}
