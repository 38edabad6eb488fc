// cmd/tools/pending-report/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"consult-intake/internal/common/config"
	"consult-intake/internal/common/database"
	"consult-intake/internal/models"
	"consult-intake/internal/repository"
)

// row is what support needs to chase a stuck payment. No medical data.
type row struct {
	ID            string    `json:"id"`
	NumeroDossier string    `json:"numeroDossier"`
	NomPrenom     string    `json:"nomPrenom"`
	Email         string    `json:"email"`
	CreatedAt     time.Time `json:"createdAt"`
	Age           string    `json:"age"`
}

func main() {
	cmd := &cobra.Command{
		Use:          "pending-report",
		Short:        "List consultations still awaiting payment confirmation",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runReport,
	}
	cmd.Flags().Duration("older-than", 30*time.Minute, "Only list records created at least this long ago")
	cmd.Flags().IntP("limit", "n", 100, "Maximum number of records")
	cmd.Flags().StringP("format", "f", "table", "Output format: table or json")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runReport(cmd *cobra.Command, args []string) error {
	olderThan, _ := cmd.Flags().GetDuration("older-than")
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer pg.Close()

	now := time.Now()
	recs, err := repository.NewConsultationRepository(pg.DB).Find(ctx, repository.Filter{
		Status:        models.PaymentPending,
		CreatedBefore: now.Add(-olderThan),
	}, limit)
	if err != nil {
		return fmt.Errorf("listing pending consultations: %w", err)
	}

	rows := buildRows(recs, now)
	if format == "json" {
		return writeJSON(cmd.OutOrStdout(), rows)
	}
	return writeTable(cmd.OutOrStdout(), rows)
}

func buildRows(recs []models.SubmittedRecord, now time.Time) []row {
	rows := make([]row, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, row{
			ID:            r.ID,
			NumeroDossier: r.NumeroDossier,
			NomPrenom:     r.NomPrenom,
			Email:         r.Email,
			CreatedAt:     r.CreatedAt.UTC(),
			Age:           now.Sub(r.CreatedAt).Truncate(time.Minute).String(),
		})
	}
	return rows
}

func writeJSON(w io.Writer, rows []row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func writeTable(w io.Writer, rows []row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOSSIER\tNOM\tEMAIL\tCREATED\tAGE\tID")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.NumeroDossier, r.NomPrenom, r.Email, r.CreatedAt.Format(time.RFC3339), r.Age, r.ID)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d pending consultation(s)\n", len(rows))
	return err
}
