package migrations

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrations_OrdersByNumericVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"V10__late.sql":       {Data: []byte("SELECT 1;")},
		"V2__second.sql":      {Data: []byte("SELECT 1;")},
		"V1__first.sql":       {Data: []byte("SELECT 1;")},
		"seed_extra.sql":      {Data: []byte("SELECT 1;")},
		"README.md":           {Data: []byte("docs")},
		"nested/V3__skip.sql": {Data: []byte("SELECT 1;")},
	}

	migs, err := listMigrations(fsys)
	require.NoError(t, err)

	names := make([]string, 0, len(migs))
	for _, m := range migs {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"V1__first.sql", "V2__second.sql", "V10__late.sql", "seed_extra.sql"}, names)
	assert.Equal(t, "10", migs[2].Version)
	assert.Equal(t, "", migs[3].Version)
}

func TestParseVersion(t *testing.T) {
	assert.Equal(t, "3", parseVersion("V3__lessons.sql"))
	assert.Equal(t, "", parseVersion("V3.sql"))
	assert.Equal(t, "", parseVersion("lessons.sql"))
	_, ok := parseVersionNumber("Vx__bad.sql")
	assert.False(t, ok)
}

func TestEmbeddedMigrationsCoverLessonTables(t *testing.T) {
	migs, err := listMigrations(Files())
	require.NoError(t, err)
	require.NotEmpty(t, migs)

	var all strings.Builder
	for _, m := range migs {
		content, err := fs.ReadFile(Files(), m.Name)
		require.NoError(t, err)
		all.Write(content)
	}
	for _, table := range []string{
		"lesson_templates", "lesson_editions", "lesson_content_items",
		"content_item_pedagogy", "content_item_gamification", "lesson_asset_jobs", "assets",
	} {
		assert.Contains(t, all.String(), "CREATE TABLE IF NOT EXISTS "+table)
	}
}
