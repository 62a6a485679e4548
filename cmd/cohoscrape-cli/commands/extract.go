package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/daveminay/cohoscrape/internal/app"
	"github.com/daveminay/cohoscrape/internal/archive"
	"github.com/daveminay/cohoscrape/internal/components/telemetry"
	"github.com/daveminay/cohoscrape/internal/config"
	"github.com/daveminay/cohoscrape/internal/extraction"
	"github.com/daveminay/cohoscrape/internal/registry"
	"github.com/daveminay/cohoscrape/internal/session"

	"github.com/spf13/cobra"
)

var (
	extractOutput  *string
	extractSession *string
	extractDb      *string
)

func init() {
	extractOutput = extractCmd.Flags().StringP("output", "o", "", "Where to write the archive, defaults to company_<id>_data.zip.")
	extractSession = extractCmd.Flags().String("session", "", "Run inside a persisted session so a repeated call reuses its archive.")
	extractDb = extractCmd.Flags().String("db", "", "The session database, overrides the configured one.")
	rootCmd.AddCommand(extractCmd)
}

func logProgress(p extraction.Progress) {
	slog.Info(p.Message, "stage", p.Stage, "percent", p.Percent)
}

var extractCmd = &cobra.Command{
	Use:   "extract <company-number> [-o <file.zip>] [--session <id>] [--db <path>]",
	Short: "Extracts the records and filing documents of one company into a zip archive.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, a, tel, err := setup()
		if err != nil {
			return err
		}
		id := registry.CompanyID(args[0]).Normalize()

		output := *extractOutput
		if output == "" {
			output = archive.FileName(id)
		}

		var data []byte
		if *extractSession == "" {
			data, err = extractDirect(cmd.Context(), a, id)
		} else {
			if *extractDb != "" {
				cfg.DB = *extractDb
			}
			data, err = extractInSession(cmd.Context(), cfg, a, tel, *extractSession, id)
		}
		if err != nil {
			return err
		}

		err = os.WriteFile(output, data, 0644)
		if err != nil {
			return err
		}
		slog.Info("wrote archive", "path", output, "bytes", len(data))
		return nil
	},
}

func extractDirect(ctx context.Context, a app.App, id registry.CompanyID) ([]byte, error) {
	workDir, err := os.MkdirTemp("", "cohoscrape-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(workDir)

	result, err := a.Pipeline.Run(ctx, id, workDir, logProgress)
	if err != nil {
		return nil, err
	}
	slog.Info(
		"extraction complete",
		"files", result.Archive.Count,
		"documents", len(result.Documents),
		"stop", result.Scan.Stop,
	)
	return result.Archive.Bytes, nil
}

// extractInSession drives the same state machine as the server. The session
// authorizes itself with the configured password.
func extractInSession(ctx context.Context, cfg config.Config, a app.App, tel telemetry.API, sessionID string, id registry.CompanyID) ([]byte, error) {
	store, closeStore, err := app.OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	manager, err := a.Manager(cfg, store, tel)
	if err != nil {
		return nil, err
	}

	s, err := manager.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		s, err = manager.Reset(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}
	err = manager.Authorize(ctx, sessionID, cfg.Password)
	if err != nil {
		return nil, err
	}

	switch s.Stage {
	case session.StageIdle, session.StageResultsShown:
		_, err = manager.Select(ctx, sessionID, id)
		if err != nil {
			return nil, err
		}
	case session.StageExtracting, session.StageComplete:
		if s.Target != id {
			return nil, fmt.Errorf("session %s is bound to %s, reset it first", sessionID, s.Target)
		}
	}

	s, err = manager.Extract(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.Archive, nil
}
