package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/rmj95fgb7x-art/lex-kernel-oracle/alertstore"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/config"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/db"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/errors"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/logger"
)

// AlertsCmd lists and prunes persisted drift alerts.
var AlertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List persisted drift alerts",
	Long: `List drift alerts persisted by the streaming fusion server.

Examples:
  lexkernel alerts                        # 20 most recent alerts
  lexkernel alerts --stream <id>          # Alerts for one stream
  lexkernel alerts --limit 100
  lexkernel alerts prune --before 720h    # Drop alerts older than 30 days`,
	RunE: runAlerts,
}

var alertsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old drift alerts",
	RunE:  runAlertsPrune,
}

var (
	alertsDBPath string
	alertsStream string
	alertsLimit  int
	alertsBefore time.Duration
)

func init() {
	AlertsCmd.PersistentFlags().StringVar(&alertsDBPath, "db", "", "Database path (overrides config)")
	AlertsCmd.Flags().StringVar(&alertsStream, "stream", "", "Only alerts from this stream")
	AlertsCmd.Flags().IntVar(&alertsLimit, "limit", 20, "Maximum number of alerts to show")

	alertsPruneCmd.Flags().DurationVar(&alertsBefore, "before", 30*24*time.Hour, "Delete alerts older than this")
	AlertsCmd.AddCommand(alertsPruneCmd)
}

func openAlertStore() (*alertstore.Store, func(), error) {
	path := alertsDBPath
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to load config")
		}
		path = cfg.Database.Path
	}

	database, err := db.OpenWithMigrations(path, logger.Logger)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open database %s", path)
	}
	return alertstore.NewStore(database), func() { database.Close() }, nil
}

func runAlerts(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openAlertStore()
	if err != nil {
		return err
	}
	defer closeDB()

	var alerts []*alertstore.Alert
	if alertsStream != "" {
		alerts, err = store.ListByStream(alertsStream, alertsLimit)
	} else {
		alerts, err = store.ListRecent(alertsLimit)
	}
	if err != nil {
		return errors.Wrap(err, "failed to list alerts")
	}

	if len(alerts) == 0 {
		pterm.Info.Println("No drift alerts recorded")
		return nil
	}

	rows := pterm.TableData{{"Stream", "Timestep", "Min weight", "Outliers", "When"}}
	for _, a := range alerts {
		stream := a.StreamID
		if len(stream) > 8 {
			stream = stream[:8]
		}
		rows = append(rows, []string{
			stream,
			fmt.Sprintf("%d", a.Timestep),
			fmt.Sprintf("%.4f", a.MinWeight),
			fmt.Sprintf("%v", a.OutlierIndices),
			a.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	pterm.Info.Printf("%d alerts\n", len(alerts))
	return nil
}

func runAlertsPrune(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openAlertStore()
	if err != nil {
		return err
	}
	defer closeDB()

	cutoff := time.Now().Add(-alertsBefore)
	deleted, err := store.Prune(cutoff)
	if err != nil {
		return errors.Wrap(err, "failed to prune alerts")
	}

	pterm.Success.Printf("Deleted %d alerts older than %s\n", deleted, cutoff.Local().Format("2006-01-02 15:04:05"))
	return nil
}
