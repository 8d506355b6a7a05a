package migrations

import (
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceListsEmbeddedMigrationsInOrder(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)

	versions := []uint{first}
	for v := first; ; {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		require.NoError(t, err)
		versions = append(versions, next)
		v = next
	}
	assert.Equal(t, []uint{1, 2, 3}, versions)
}

func TestMigrationsCreateTables(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	want := map[uint]string{
		1: "CREATE TABLE IF NOT EXISTS world_storage",
		2: "CREATE TABLE IF NOT EXISTS player_storage",
		3: "CREATE TABLE IF NOT EXISTS env_variables",
	}
	for version, stmt := range want {
		r, identifier, err := src.ReadUp(version)
		require.NoError(t, err)
		body, err := io.ReadAll(r)
		r.Close()
		require.NoError(t, err)

		assert.NotEmpty(t, identifier)
		assert.Contains(t, string(body), stmt)
		assert.Contains(t, string(body), "size_bytes")

		down, _, err := src.ReadDown(version)
		require.NoError(t, err)
		downBody, err := io.ReadAll(down)
		down.Close()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(downBody), "DROP TABLE"))
	}
}
