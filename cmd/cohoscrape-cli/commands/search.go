package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <term...>",
	Short: "Searches companies by name.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a, _, err := setup()
		if err != nil {
			return err
		}

		term := strings.Join(args, " ")
		res := a.Registry.SearchByName(cmd.Context(), term)
		if !res.OK() {
			return fmt.Errorf("search %q: %w", term, res.Reason)
		}
		if len(res.Value) == 0 {
			fmt.Printf("no companies match %q\n", term)
			return nil
		}

		t := newTable()
		t.AppendHeader(table.Row{"Number", "Name", "Status", "Address"})
		for _, company := range res.Value {
			t.AppendRow(table.Row{
				company.CompanyNumber,
				company.Title,
				company.CompanyStatus,
				company.AddressSnippet,
			})
		}
		t.Render()
		return nil
	},
}
