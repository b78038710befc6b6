package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaporm/pkg/driver"
)

func newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql>",
		Short: "Run an ad hoc statement against a configured connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			m, _, err := openManager(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			d, err := m.Connection(connFlag)
			if err != nil {
				return err
			}
			rq, ok := d.(driver.RawQuerier)
			if !ok {
				return fmt.Errorf("connection does not support raw queries")
			}

			cols, rows, err := rq.RawQuery(ctx, args[0])
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			header := make(table.Row, len(cols))
			for i, c := range cols {
				header[i] = c
			}
			t.AppendHeader(header)
			for _, row := range rows {
				out := make(table.Row, len(cols))
				for i, c := range cols {
					out[i] = formatValue(row[c])
				}
				t.AppendRow(out)
			}
			t.Render()

			fmt.Fprintf(cmd.OutOrStdout(), "%d rows\n", len(rows))
			return nil
		},
	}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
