package schema

import (
	"testing"
	"testing/fstest"

	"github.com/dropDatabas3/accountd/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Ordered(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_b_up.sql":   {Data: []byte("B")},
		"m/0001_a_up.sql":   {Data: []byte("A")},
		"m/0001_a_down.sql": {Data: []byte("-A")},
		"m/README.md":       {Data: []byte("x")},
	}
	got, err := Load(fsys, "m")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Migration{Version: "0001_a", Up: "A", Down: "-A"}, got[0])
	assert.Equal(t, "0002_b", got[1].Version)
}

func TestLoad_DownWithoutUp(t *testing.T) {
	_, err := Load(fstest.MapFS{"m/0001_a_down.sql": {Data: []byte("x")}}, "m")
	assert.Error(t, err)
}

func TestPending(t *testing.T) {
	all := []Migration{{Version: "0001"}, {Version: "0002"}, {Version: "0003"}}
	got := Pending(all, map[string]bool{"0001": true})
	require.Len(t, got, 2)
	assert.Equal(t, "0002", got[0].Version)
}

func TestEmbeddedSchemas(t *testing.T) {
	pg, err := Load(migrations.PostgresFS, migrations.PostgresDir)
	require.NoError(t, err)
	lite, err := Load(migrations.SQLiteFS, migrations.SQLiteDir)
	require.NoError(t, err)
	require.Equal(t, len(pg), len(lite))
	for i := range pg {
		assert.Equal(t, pg[i].Version, lite[i].Version)
		assert.NotEmpty(t, pg[i].Down)
	}
}
