package migration_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/sqlmigrate/internal/migration"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func writeUnit(t *testing.T, root, id, up, down string) {
	t.Helper()

	dir := filepath.Join(root, id)
	writeFile(t, dir, migration.UpScript, up)
	writeFile(t, dir, migration.DownScript, down)
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestRepository_Discover(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		wantErr bool
		want    []string
	}{
		{
			name: "loads from testdata directory",
			setup: func(t *testing.T) string {
				t.Helper()

				return filepath.Join("..", "..", "testdata", "migrations")
			},
			want: []string{"m20230101_000000_init", "m20230102_000000_addcol"},
		},
		{
			name: "missing directory returns error",
			setup: func(t *testing.T) string {
				t.Helper()

				return filepath.Join(t.TempDir(), "nonexistent")
			},
			wantErr: true,
		},
		{
			name: "empty directory returns nothing",
			setup: func(t *testing.T) string {
				t.Helper()

				return t.TempDir()
			},
			want: []string{},
		},
		{
			name: "units are sorted ascending",
			setup: func(t *testing.T) string {
				t.Helper()
				root := t.TempDir()
				writeUnit(t, root, "m20230301_000000_c", "", "")
				writeUnit(t, root, "m20230101_000000_a", "", "")
				writeUnit(t, root, "m20230201_000000_b", "", "")

				return root
			},
			want: []string{"m20230101_000000_a", "m20230201_000000_b", "m20230301_000000_c"},
		},
		{
			name: "non-canonical entries are skipped",
			setup: func(t *testing.T) string {
				t.Helper()
				root := t.TempDir()
				writeUnit(t, root, "m20230101_000000_init", "", "")
				writeFile(t, root, "README.md", "# readme")
				writeFile(t, root, "m20230102_000000_file.sql", "SELECT 1;")
				writeUnit(t, root, "notes", "", "")
				writeUnit(t, root, "m20231301_000000_bad_month", "", "")
				writeUnit(t, root, ".m20230103_000000_hidden", "", "")

				return root
			},
			want: []string{"m20230101_000000_init"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := tt.setup(t)
			units, err := migration.NewRepository(root).Discover()

			if tt.wantErr {
				require.ErrorIs(t, err, migration.ErrFilesystem)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(t, units))
		})
	}
}

func TestRepository_Discover_fillsScriptPaths(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeUnit(t, root, "m20230101_000000_init", "CREATE TABLE foo (id INT);", "DROP TABLE foo;")

	units, err := migration.NewRepository(root).Discover()

	require.NoError(t, err)
	require.Len(t, units, 1)

	u := units[0]
	assert.Equal(t, "init", u.Name)
	assert.Equal(t, filepath.Join(root, "m20230101_000000_init", "up.sql"), u.UpPath)
	assert.Equal(t, filepath.Join(root, "m20230101_000000_init", "down.sql"), u.DownPath)
	assert.True(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).Equal(u.CreatedAt))
}

func TestRepository_Create_writesEmptyScripts(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "db", "migrations")
	at := time.Date(2024, 3, 9, 14, 30, 5, 0, time.UTC)
	repo := migration.NewRepository(root, migration.WithClock(fixedClock(at)))

	u, err := repo.Create("create_users")

	require.NoError(t, err)
	assert.Equal(t, "m20240309_143005_create_users", u.ID)
	assert.Equal(t, "create_users", u.Name)
	assert.True(t, at.Equal(u.CreatedAt))

	for _, path := range []string{u.UpPath, u.DownPath} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Zero(t, info.Size(), "%s should be empty", path)
	}

	units, err := repo.Discover()
	require.NoError(t, err)
	assert.Equal(t, []string{u.ID}, ids(t, units))
}

func TestRepository_Create_usesUTC(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 1, 1, 1, 0, 0, 0, time.FixedZone("UTC+3", 3*60*60))
	repo := migration.NewRepository(t.TempDir(), migration.WithClock(fixedClock(at)))

	u, err := repo.Create("tz")

	require.NoError(t, err)
	assert.Equal(t, "m20231231_220000_tz", u.ID)
}

func TestRepository_Create_invalidName_returnsValidationError(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	repo := migration.NewRepository(root)

	_, err := repo.Create("add users;")

	require.ErrorIs(t, err, migration.ErrInvalidName)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing should be created for an invalid name")
}

func TestRepository_Create_existingUnit_returnsFilesystemError(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	at := time.Date(2024, 3, 9, 14, 30, 5, 0, time.UTC)
	repo := migration.NewRepository(root, migration.WithClock(fixedClock(at)))

	first, err := repo.Create("dup")
	require.NoError(t, err)
	writeFile(t, filepath.Dir(first.UpPath), migration.UpScript, "CREATE TABLE kept (id INT);")

	_, err = repo.Create("dup")

	require.ErrorIs(t, err, migration.ErrFilesystem)

	body, err := repo.ReadScript(first.UpPath)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE kept (id INT);", body, "existing script must not be overwritten")
}

func TestRepository_Create_unwritableRoot_returnsFilesystemError(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	repo := migration.NewRepository(filepath.Join(blocker, "migrations"))

	_, err := repo.Create("init")

	require.ErrorIs(t, err, migration.ErrFilesystem)
}

func TestRepository_ReadScript(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeUnit(t, root, "m20230101_000000_init", "\n  CREATE TABLE foo (id INT);\n\n", "   \n")
	repo := migration.NewRepository(root)

	units, err := repo.Discover()
	require.NoError(t, err)
	require.Len(t, units, 1)

	up, err := repo.ReadScript(units[0].UpPath)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE foo (id INT);", up)

	down, err := repo.ReadScript(units[0].DownPath)
	require.NoError(t, err)
	assert.Empty(t, down)

	_, err = repo.ReadScript(filepath.Join(root, "missing.sql"))
	require.ErrorIs(t, err, migration.ErrFilesystem)
}

func TestRepository_Unit_buildsPathsFromID(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	repo := migration.NewRepository(root)

	u := repo.Unit("m20230102_000000_addcol")

	assert.Equal(t, "addcol", u.Name)
	assert.Equal(t, filepath.Join(root, "m20230102_000000_addcol", "down.sql"), u.DownPath)
	assert.False(t, u.CreatedAt.IsZero())

	legacy := repo.Unit("m20230102000000_legacy")

	assert.Equal(t, "m20230102000000_legacy", legacy.Name)
	assert.True(t, legacy.CreatedAt.IsZero())
	assert.Equal(t, filepath.Join(root, "m20230102000000_legacy", "up.sql"), legacy.UpPath)
}
