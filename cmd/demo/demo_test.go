package demo

import (
	"bytes"
	"sort"
	"strings"
	"testing"

	"github.com/ValentinKolb/eKV/lib/db"
	"github.com/ValentinKolb/eKV/lib/persist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// persistedLines returns the sorted entity lines of persisted entities. Hydration
// spawns entities in stable id order, so the print order can change between runs.
func persistedLines(out string) []string {
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if strings.HasPrefix(l, "  ") && !strings.Contains(l, "<not persisted>") {
			lines = append(lines, strings.TrimSpace(l))
		}
	}
	sort.Strings(lines)
	return lines
}

func TestRunRestoresWorld(t *testing.T) {
	for _, engine := range []db.Implementation{db.ImplPebble, db.ImplMaple, db.ImplSQLite} {
		t.Run(string(engine), func(t *testing.T) {
			cfg := persist.Config{Location: t.TempDir(), Engine: engine, SyncWrites: true}

			var first bytes.Buffer
			require.NoError(t, Run(&first, cfg, 2))
			assert.Contains(t, first.String(), "hydrated 0 records (0 skipped) into 0 entities")
			assert.Contains(t, first.String(), "spawned 3 entities")
			assert.Contains(t, first.String(), "<not persisted>")

			firstLines := persistedLines(first.String())
			require.Len(t, firstLines, 2)
			assert.Contains(t, firstLines[0], "x=2")

			var second bytes.Buffer
			require.NoError(t, Run(&second, cfg, 0))
			assert.Contains(t, second.String(), "hydrated 4 records (0 skipped) into 2 entities")
			assert.NotContains(t, second.String(), "spawned")
			assert.Equal(t, firstLines, persistedLines(second.String()), "stable ids and positions survive the restart")

			var third bytes.Buffer
			require.NoError(t, Run(&third, cfg, 1))
			thirdLines := persistedLines(third.String())
			require.Len(t, thirdLines, 2)
			assert.Contains(t, thirdLines[0], "x=3")
		})
	}
}

func TestRunAsync(t *testing.T) {
	cfg := persist.Config{Location: t.TempDir(), Engine: db.ImplMaple, Policy: persist.PolicyAsync, QueueSize: 1}

	var out bytes.Buffer
	require.NoError(t, Run(&out, cfg, 5))
	first := persistedLines(out.String())

	out.Reset()
	require.NoError(t, Run(&out, cfg, 0))
	assert.Equal(t, first, persistedLines(out.String()))
}
