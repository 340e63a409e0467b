package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Konsultn-Engineering/silence/dialect"
	"github.com/Konsultn-Engineering/silence/dynsql"
)

type renderOptions struct {
	template string
	params   string
	dialect  string
	format   string
	strict   bool
	guard    bool
}

type renderResult struct {
	SQL      string `json:"sql"`
	Bindings []any  `json:"bindings"`
}

func newRenderCmd() *cobra.Command {
	opts := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a SQL template offline",
		Long: `Render a template with JSON parameters and print the statement,
rebound for the chosen dialect, together with its bindings.`,
		Example: `  silence render --template 'select * from user @[&[id != null: id = #{id}]]' --params '{"id": 7}'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.template, "template", "", "template text")
	cmd.Flags().StringVar(&opts.params, "params", "", "parameters as a JSON object")
	cmd.Flags().StringVar(&opts.dialect, "dialect", "postgres", "target dialect (postgres|mysql|tidb)")
	cmd.Flags().StringVarP(&opts.format, "output", "o", "text", "output format (text|table|json|inline)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail on condition names missing from the parameters")
	cmd.Flags().BoolVar(&opts.guard, "guard", true, "reject ${} values that look like SQL injection")
	_ = cmd.MarkFlagRequired("template")

	_ = cmd.RegisterFlagCompletionFunc("dialect", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"postgres", "mysql", "tidb"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runRender(w io.Writer, opts *renderOptions) error {
	d, err := dialect.Lookup(opts.dialect)
	if err != nil {
		return err
	}

	var params map[string]any
	if opts.params != "" {
		if err := json.Unmarshal([]byte(opts.params), &params); err != nil {
			return fmt.Errorf("invalid --params: %w", err)
		}
	}

	engine := dynsql.New(
		dynsql.WithCacheSize(0),
		dynsql.WithStrictConditions(opts.strict),
		dynsql.WithInjectionGuard(opts.guard),
	)
	sql, bindings, err := engine.Build(opts.template, params)
	if err != nil {
		return err
	}
	if bindings == nil {
		bindings = []any{}
	}
	result := renderResult{SQL: dialect.Rebind(d, sql), Bindings: bindings}

	switch opts.format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "inline":
		_, _ = fmt.Fprintln(w, dialect.Inline(d, sql, bindings))
		return nil
	case "table":
		_, _ = fmt.Fprintln(w, result.SQL)
		renderBindings(w, d, bindings)
		return nil
	case "text", "":
		data, err := json.Marshal(result.Bindings)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w, result.SQL)
		_, _ = fmt.Fprintln(w, string(data))
		return nil
	}
	return fmt.Errorf("unknown output format %q", opts.format)
}

func renderBindings(w io.Writer, d dialect.Dialect, bindings []any) {
	if len(bindings) == 0 {
		_, _ = fmt.Fprintln(w, "(0 bindings)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Placeholder", "Type", "Value"})
	for i, b := range bindings {
		t.AppendRow(table.Row{i + 1, d.Placeholder(i + 1), fmt.Sprintf("%T", b), d.RenderValue(b)})
	}
	t.Render()
}
