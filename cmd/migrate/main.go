package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/bankmail-ledger/internal/config"
	"github.com/dvloznov/bankmail-ledger/internal/logger"
)

var (
	configPath    = flag.String("config", "", "Path to YAML config (ledger.project, ledger.dataset and ledger.id are used as defaults)")
	projectID     = flag.String("project", "", "GCP project ID")
	datasetID     = flag.String("dataset", "", "BigQuery dataset ID")
	ledgerTable   = flag.String("table", "", "Ledger table name")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "migrations/bigquery", "Path to migrations directory")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	*projectID = firstNonEmpty(*projectID, cfg.Ledger.Project)
	*datasetID = firstNonEmpty(*datasetID, cfg.Ledger.Dataset)
	*ledgerTable = firstNonEmpty(*ledgerTable, cfg.Ledger.ID, "ledger_entries")
	if *projectID == "" {
		log.Fatal().Msg("-project flag or ledger.project is required")
	}

	ctx := logger.WithContext(context.Background(), log)
	if err := run(ctx, log); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}

func run(ctx context.Context, log zerolog.Logger) error {
	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		return fmt.Errorf("create BigQuery client: %w", err)
	}
	defer client.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	if err := ensureSchemaMigrationsTable(ctx, client); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	dir, err := findMigrationsDir(*migrationsDir)
	if err != nil {
		return err
	}
	migrations, skipped, err := readMigrations(dir, map[string]string{
		"PROJECT_ID":   *projectID,
		"DATASET_ID":   *datasetID,
		"LEDGER_TABLE": *ledgerTable,
	})
	if err != nil {
		return err
	}
	for _, name := range skipped {
		log.Warn().Str("file", name).Msg("Skipping file with invalid migration name")
	}

	applied, err := getAppliedMigrations(ctx, client)
	if err != nil {
		return err
	}

	todo, changed := pending(migrations, applied)
	for _, m := range changed {
		log.Warn().Str("migration", m.Filename).Msg("Applied migration changed on disk; not re-running")
	}

	log.Info().Int("found", len(migrations)).Int("applied", len(applied)).Int("pending", len(todo)).Msg("Migration status")

	for _, m := range todo {
		mlog := log.With().Str("migration", m.Filename).Logger()
		mlog.Info().Msg("Applying migration")

		if err := runQuery(ctx, client.Query(m.SQL)); err != nil {
			return fmt.Errorf("execute %s: %w", m.Filename, err)
		}
		if err := recordMigration(ctx, client, m); err != nil {
			return fmt.Errorf("record %s: %w", m.Filename, err)
		}
		mlog.Info().Msg("Migration applied")
	}

	if len(todo) == 0 {
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func tableRef(table string) string {
	return fmt.Sprintf("`%s.%s.%s`", *projectID, *datasetID, table)
}

// ensureSchemaMigrationsTable creates the schema_migrations table if it doesn't exist
func ensureSchemaMigrationsTable(ctx context.Context, client *bigquery.Client) error {
	sql := `CREATE TABLE IF NOT EXISTS ` + tableRef("schema_migrations") + ` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)`
	return runQuery(ctx, client.Query(sql))
}

// getAppliedMigrations retrieves the list of already applied migrations
func getAppliedMigrations(ctx context.Context, client *bigquery.Client) ([]AppliedMigration, error) {
	q := client.Query(`SELECT version, name, applied_at, checksum, applied_by FROM ` +
		tableRef("schema_migrations") + ` ORDER BY version ASC`)

	it, err := q.Read(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "Not found") {
			return []AppliedMigration{}, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64                  `bigquery:"version"`
			Name      string                 `bigquery:"name"`
			AppliedAt bigquery.NullTimestamp `bigquery:"applied_at"`
			Checksum  bigquery.NullString    `bigquery:"checksum"`
			AppliedBy bigquery.NullString    `bigquery:"applied_by"`
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt.Timestamp,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}

	return applied, nil
}

// recordMigration records a successfully applied migration in schema_migrations
func recordMigration(ctx context.Context, client *bigquery.Client, m Migration) error {
	q := client.Query(`INSERT INTO ` + tableRef("schema_migrations") + `
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: *appliedBy},
	}
	return runQuery(ctx, q)
}

func runQuery(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
