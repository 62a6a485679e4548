package commands

import (
	"fmt"

	"github.com/daveminay/cohoscrape/internal/app"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var sessionDb *string
var sessionReset *bool

func init() {
	sessionDb = sessionCmd.Flags().String("db", "", "The session database, overrides the configured one.")
	sessionReset = sessionCmd.Flags().Bool("reset", false, "Reset the session back to idle.")
	rootCmd.AddCommand(sessionCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session <id> [--db <path>] [--reset]",
	Short: "Shows (or resets) a persisted extraction session.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, a, tel, err := setup()
		if err != nil {
			return err
		}
		if *sessionDb != "" {
			cfg.DB = *sessionDb
		}
		if cfg.DB == "" {
			return fmt.Errorf("sessions are only kept across invocations with a database, pass --db")
		}

		store, closeStore, err := app.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		manager, err := a.Manager(cfg, store, tel)
		if err != nil {
			return err
		}

		s, err := manager.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if *sessionReset {
			s, err = manager.Reset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
		}
		authorized, err := manager.Authorized(cmd.Context(), s.ID)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Field", "Value"})
		t.AppendRows([]table.Row{
			{"ID", s.ID},
			{"Stage", s.Stage},
			{"Authorized", authorized},
			{"Search Term", s.SearchTerm},
			{"Results", len(s.Results)},
			{"Target", s.Target},
			{"Archive", s.ArchiveName},
			{"Files", s.FileCount},
			{"Error", s.Error},
			{"Updated", s.UpdatedAt.Format("2006-01-02 15:04:05")},
		})
		if s.Progress != nil {
			t.AppendRow(table.Row{"Progress", fmt.Sprintf("%d%% %s", s.Progress.Percent, s.Progress.Message)})
		}
		t.Render()
		return nil
	},
}
