package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaporm/pkg/driver"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <table>",
		Short: "Show column metadata and row count for a table",
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
			mp, ok := d.(driver.MetadataProvider)
			if !ok {
				return fmt.Errorf("connection does not support table inspection")
			}

			meta, err := mp.TableMetadata(ctx, args[0])
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"#", "Column", "Type", "Nullable"})
			for _, col := range meta.Columns {
				t.AppendRow(table.Row{col.Position, col.Name, col.Type, col.Nullable})
			}
			t.Render()

			fmt.Fprintf(cmd.OutOrStdout(), "%d rows in %s.%s\n", meta.RowCount, meta.Schema, meta.Name)
			return nil
		},
	}
}
