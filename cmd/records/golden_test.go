package records

import (
	"bytes"
	"io"
	"testing"

	"github.com/ValentinKolb/eKV/cmd/util"
	"github.com/ValentinKolb/eKV/lib/db"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

const goldenID = "c3f0a1d2-7b4e-4f5a-9c1d-2e8b6a4f0d17"

func goldenRecords() []record {
	return []record{
		{Tag: "demo.Name", ID: goldenID, Size: 4, Value: map[string]any{"Value": "ada"}},
		{Tag: "demo.Position", ID: goldenID, Size: 7, Value: map[string]any{"X": 3, "Y": -1}},
		{Tag: "demo.Velocity", ID: goldenID, Size: 5, Error: "no type meta record"},
	}
}

func assertGolden(t *testing.T, name string, got []byte) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, got)
}

func TestInspectOutput(t *testing.T) {
	records := goldenRecords()
	for _, format := range []string{util.FormatText, util.FormatJSON, util.FormatYAML} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			err := util.Render(&buf, format, records, func(w io.Writer) error {
				return writeRecords(w, records)
			})
			require.NoError(t, err)
			assertGolden(t, "inspect_"+format, buf.Bytes())
		})
	}
}

func TestStatsOutput(t *testing.T) {
	stats := storeStats{
		Engine: db.DatabaseInfo{
			SizeBytes:         163,
			Keys:              5,
			DbType:            db.ImplMaple,
			SupportedFeatures: []db.Feature{db.FeatureSet, db.FeatureGet, db.FeatureScan},
		},
		Tags: []tagStats{
			{Tag: "demo.Name", Records: 2, Bytes: 9, Format: "msgpack", SchemaVersion: 1, Type: "demo.Name"},
			{Tag: "demo.Position", Records: 1, Bytes: 7, Format: "json", SchemaVersion: 2, Type: "demo.Position"},
			{Tag: "demo.Velocity", Records: 1, Bytes: 5},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeStats(&buf, stats))
	assertGolden(t, "stats_text", buf.Bytes())

	buf.Reset()
	require.NoError(t, writeStats(&buf, storeStats{Engine: db.DatabaseInfo{DbType: db.ImplPebble}}))
	assertGolden(t, "stats_empty", buf.Bytes())
}
