package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/sqlmigrate/internal/config"
	"github.com/aqasim81/sqlmigrate/internal/database"
	"github.com/aqasim81/sqlmigrate/internal/executor"
	"github.com/aqasim81/sqlmigrate/internal/lint"
	"github.com/aqasim81/sqlmigrate/internal/migration"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

var fixtures = filepath.Join("..", "..", "testdata", "migrations") //nolint:gochecknoglobals // shared test fixture path

// useConfig points AppConfig at a fresh SQLite file and dir.
func useConfig(t *testing.T, dir string) *config.Config {
	t.Helper()

	old := AppConfig
	t.Cleanup(func() { AppConfig = old })

	cfg := config.New()
	cfg.Database.DBMS = "sqlite"
	cfg.Database.DBName = filepath.Join(t.TempDir(), "app.db")
	cfg.Migration.Directory = dir
	cfg.Migration.StepDelay = 0

	AppConfig = cfg

	return cfg
}

func newRunCommand() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)

	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.Flags().Bool("dry-run", false, "")
	cmd.Flags().Bool("check", false, "")
	cmd.Flags().Duration("step-delay", 0, "")

	return cmd, out, errOut
}

func writeUnit(t *testing.T, root, id, up, down string) {
	t.Helper()

	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, migration.UpScript), []byte(up), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, migration.DownScript), []byte(down), 0o644))
}

func TestRunUp_appliesAllAndHistoryLists(t *testing.T) { // not parallel: mutates global AppConfig
	useConfig(t, fixtures)

	cmd, out, _ := newRunCommand()
	require.NoError(t, runUp(cmd, nil))

	assert.Contains(t, out.String(), "Migration table migration was created successfully.")
	assert.Contains(t, out.String(), "Migration m20230101_000000_init was applied successfully.")
	assert.Contains(t, out.String(), "Migration m20230102_000000_addcol was applied successfully.")

	cmd, out, _ = newRunCommand()
	require.NoError(t, runHistory(cmd, []string{"1"}))

	assert.Regexp(t, `Migration m20230102_000000_addcol from \d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\n`, out.String())
	assert.NotContains(t, out.String(), "m20230101_000000_init")
	assert.NotContains(t, out.String(), "created successfully", "ledger table already exists")
}

func TestRunUp_nothingPending(t *testing.T) { // not parallel: mutates global AppConfig
	useConfig(t, t.TempDir())

	cmd, out, _ := newRunCommand()
	require.NoError(t, runUp(cmd, nil))

	assert.Contains(t, out.String(), "No new migrations found. Your system is up-to-date.")
}

func TestRunUp_count(t *testing.T) { // not parallel: mutates global AppConfig
	useConfig(t, fixtures)

	cmd, out, _ := newRunCommand()
	require.NoError(t, runUp(cmd, []string{"1"}))

	assert.Contains(t, out.String(), "m20230101_000000_init was applied")
	assert.NotContains(t, out.String(), "m20230102_000000_addcol")
}

func TestRunUp_dryRun_appliesNothing(t *testing.T) { // not parallel: mutates global AppConfig
	useConfig(t, fixtures)

	cmd, out, _ := newRunCommand()
	require.NoError(t, cmd.Flags().Set("dry-run", "true"))
	require.NoError(t, runUp(cmd, nil))

	assert.Contains(t, out.String(), "Migration m20230101_000000_init would be applied.")
	assert.Contains(t, out.String(), "Migration m20230102_000000_addcol would be applied.")

	cmd, out, _ = newRunCommand()
	require.NoError(t, runNew(cmd, nil))

	assert.Contains(t, out.String(), "Pending migration m20230101_000000_init from 2023-01-01 00:00:00\n")
	assert.Contains(t, out.String(), "Pending migration m20230102_000000_addcol from 2023-01-02 00:00:00\n")
}

func TestRunUp_stepFailure_reportsUnit(t *testing.T) { // not parallel: mutates global AppConfig
	root := t.TempDir()
	writeUnit(t, root, "m20230101_000000_ok", "CREATE TABLE ok (id INTEGER);", "DROP TABLE ok;")
	writeUnit(t, root, "m20230102_000000_broken", "CREATE TABLEX broken (id INTEGER);", "")
	useConfig(t, root)

	cmd, out, errOut := newRunCommand()
	err := runUp(cmd, nil)

	var stepErr *executor.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "m20230102_000000_broken", stepErr.ID)
	assert.Equal(t, exitFailure, exitCode(err))
	assert.Contains(t, out.String(), "Migration m20230101_000000_ok was applied successfully.")
	assert.Contains(t, errOut.String(), "Migration m20230102_000000_broken failed.")
}

func TestRunUp_check_requiresPostgres(t *testing.T) { // not parallel: mutates global AppConfig
	useConfig(t, fixtures)

	cmd, _, _ := newRunCommand()
	require.NoError(t, cmd.Flags().Set("check", "true"))

	err := runUp(cmd, nil)

	require.ErrorIs(t, err, lint.ErrUnsupportedDialect)

	cmd, out, _ := newRunCommand()
	require.NoError(t, runNew(cmd, nil))
	assert.Contains(t, out.String(), "Pending migration m20230101_000000_init")
}

func TestRunUp_invalidCount(t *testing.T) { // not parallel: mutates global AppConfig
	useConfig(t, fixtures)

	cmd, _, _ := newRunCommand()

	err := runUp(cmd, []string{"-1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-negative integer")
}

func TestRunDown_revertsNewestFirst(t *testing.T) { // not parallel: mutates global AppConfig
	useConfig(t, fixtures)

	cmd, _, _ := newRunCommand()
	require.NoError(t, runUp(cmd, nil))

	cmd, out, _ := newRunCommand()
	require.NoError(t, runDown(cmd, []string{"1"}))

	assert.Contains(t, out.String(), "Migration m20230102_000000_addcol was reverted successfully.")
	assert.NotContains(t, out.String(), "m20230101_000000_init")

	cmd, out, _ = newRunCommand()
	require.NoError(t, runHistory(cmd, nil))

	assert.Contains(t, out.String(), "Migration m20230101_000000_init from ")
	assert.NotContains(t, out.String(), "addcol")
}

func TestRunDown_emptyLedger(t *testing.T) { // not parallel: mutates global AppConfig
	useConfig(t, fixtures)

	cmd, out, _ := newRunCommand()
	require.NoError(t, runDown(cmd, nil))

	assert.Contains(t, out.String(), "No applied migrations to revert.")
}

func TestRunHistory_empty(t *testing.T) { // not parallel: mutates global AppConfig
	useConfig(t, fixtures)

	cmd, out, _ := newRunCommand()
	require.NoError(t, runHistory(cmd, nil))

	assert.Contains(t, out.String(), "Migration history is empty.\n")
}

func TestRunHistory_invalidLimit(t *testing.T) { // not parallel: mutates global AppConfig
	useConfig(t, fixtures)

	cmd, _, _ := newRunCommand()

	err := runHistory(cmd, []string{"ten"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")
}

func TestRunNew_nothingPending(t *testing.T) { // not parallel: mutates global AppConfig
	useConfig(t, t.TempDir())

	cmd, out, _ := newRunCommand()
	require.NoError(t, runNew(cmd, nil))

	assert.Contains(t, out.String(), "No new migrations found.")
}

func TestRunCreate_writesUnit(t *testing.T) { // not parallel: mutates global AppConfig
	root := filepath.Join(t.TempDir(), "migrations")
	useConfig(t, root)

	cmd, out, _ := newRunCommand()
	require.NoError(t, runCreate(cmd, []string{"create_users"}))

	assert.Regexp(t, `Migration m\d{8}_\d{6}_create_users was created successfully\.`, out.String())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsDir())
}

func TestRunCreate_invalidName(t *testing.T) { // not parallel: mutates global AppConfig
	useConfig(t, t.TempDir())

	cmd, _, _ := newRunCommand()

	err := runCreate(cmd, []string{"drop-users"})

	require.ErrorIs(t, err, migration.ErrInvalidName)
	assert.Equal(t, exitFailure, exitCode(err))
}

func TestRunCheck_requiresPostgres(t *testing.T) { // not parallel: mutates global AppConfig
	useConfig(t, fixtures)

	cmd, _, _ := newRunCommand()

	err := runCheck(cmd, nil)

	require.ErrorIs(t, err, lint.ErrUnsupportedDialect)
}

func TestRunHistory_unknownDialect_isFatal(t *testing.T) { // not parallel: mutates global AppConfig
	cfg := useConfig(t, fixtures)
	cfg.Database.DBMS = "oracle"

	cmd, _, _ := newRunCommand()

	err := runHistory(cmd, nil)

	require.ErrorIs(t, err, database.ErrUnknownDialect)
	assert.Equal(t, exitFatal, exitCode(err))
}

func TestParseCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		want    int
		wantErr bool
	}{
		{name: "no argument means all", args: nil, want: executor.All},
		{name: "zero", args: []string{"0"}, want: 0},
		{name: "positive", args: []string{"3"}, want: 3},
		{name: "negative", args: []string{"-2"}, wantErr: true},
		{name: "not a number", args: []string{"all"}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseCount(tt.args)

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintReport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		report *lint.Report
		want   []string
	}{
		{
			name:   "clean report",
			report: &lint.Report{Units: 2},
			want:   []string{"2 pending migration(s) checked, no problems found."},
		},
		{
			name: "findings grouped by unit",
			report: &lint.Report{
				Units: 1,
				Max:   lint.Error,
				Findings: []lint.Finding{{
					Rule:      "non-transactional",
					Severity:  lint.Error,
					Unit:      "m20230101_000000_idx",
					Direction: lint.DirectionUp,
					Statement: "CREATE INDEX CONCURRENTLY idx ON users (email)",
					Line:      3,
					Message:   "CREATE INDEX CONCURRENTLY cannot run inside a transaction block",
				}},
			},
			want: []string{
				"=== m20230101_000000_idx ===",
				"[ERROR] up:3 CREATE INDEX CONCURRENTLY cannot run inside a transaction block",
				"Rule:  non-transactional",
				"SQL:   CREATE INDEX CONCURRENTLY idx ON users (email)",
				"Found 1 finding(s) across 1 pending migration(s).",
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			buf := new(bytes.Buffer)
			printReport(buf, tt.report)

			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestConsoleSink(t *testing.T) {
	t.Parallel()

	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	sink := newConsoleSink(out, errOut)

	sink.Info("Migration m1 was applied successfully.", "duration", 5)
	sink.Error("Migration m2 failed.", "error", errors.New("syntax error"))

	assert.Equal(t, "Migration m1 was applied successfully.\n", out.String())
	assert.Equal(t, "Migration m2 failed.\n  syntax error\n", errOut.String())
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, exitFatal, exitCode(fmt.Errorf("%w: refused", database.ErrConnectionFailed)))
	assert.Equal(t, exitFailure, exitCode(&executor.StepError{ID: "m1", Direction: executor.Up, Err: errors.New("x")}))
	assert.Equal(t, exitFailure, exitCode(errCheckFindings))
}

func TestTruncateSQL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "SELECT 1", truncateSQL("SELECT 1", 100))
	assert.Equal(t, "SELECT 1", truncateSQL("SELECT 1", 8))
	assert.Equal(t, "SELECT * FROM ver...", truncateSQL("SELECT * FROM very_long_table_name WHERE id = 1", 20))
	assert.Equal(t, "SELECT 1", truncateSQL("SELECT 1", 3))
}
