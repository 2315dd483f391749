package main

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(f func()) string {
	oldStdout := os.Stdout
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stdout = w
	os.Stderr = w

	f()

	w.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestVersionCmd(t *testing.T) {
	oldVersion := Version
	oldBuildTime := BuildTime
	oldGitCommit := GitCommit
	defer func() {
		Version = oldVersion
		BuildTime = oldBuildTime
		GitCommit = oldGitCommit
	}()

	Version = "1.2.3"
	BuildTime = "2025-06-01"
	GitCommit = "abcdef"

	output := captureOutput(func() {
		rootCmd.SetArgs([]string{"version"})
		rootCmd.Execute()
	})

	assert.Contains(t, output, "Insight Engine 1.2.3")
	assert.Contains(t, output, "Built: 2025-06-01")
	assert.Contains(t, output, "Commit: abcdef")
}

const testFeatureCollection = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {},
      "geometry": {"type": "Polygon", "coordinates": [[[-147,-9],[-146,-9],[-146,-8],[-147,-8],[-147,-9]]]}
    },
    {
      "type": "Feature",
      "properties": {"name": "survey box"},
      "geometry": null
    },
    {
      "type": "Feature",
      "properties": {"zone_id": "ISA-ZONE-7", "name": "reserved block"},
      "geometry": {"type": "Polygon", "coordinates": [[[-150,-5],[-149,-5],[-149,-4],[-150,-4],[-150,-5]]]}
    }
  ]
}`

func TestCollectZonesFeatureCollection(t *testing.T) {
	zones, err := collectZones([]byte(testFeatureCollection), zoneLoadOptions{
		Prefix:   "ISA-ZONE",
		Start:    1,
		Kind:     "restricted",
		FileStem: "blocks",
	})
	require.NoError(t, err)
	require.Len(t, zones, 2, "the feature without geometry is skipped")

	assert.Equal(t, "ISA-ZONE-1", zones[0].ZoneID)
	assert.Equal(t, "ISA-ZONE-1", zones[0].Name, "unnamed zones fall back to their id")
	assert.Equal(t, "restricted", zones[0].Kind)
	assert.Contains(t, string(zones[0].GeoJSON), `"Polygon"`)

	// Explicit properties win, and the skipped feature consumed no index.
	assert.Equal(t, "ISA-ZONE-7", zones[1].ZoneID)
	assert.Equal(t, "reserved block", zones[1].Name)
}

func TestCollectZonesNameFromFile(t *testing.T) {
	zones, err := collectZones([]byte(testFeatureCollection), zoneLoadOptions{
		Prefix:       "ISA-ZONE",
		Start:        5,
		Kind:         "restricted",
		NameFromFile: true,
		FileStem:     "randomShapeMap",
	})
	require.NoError(t, err)
	require.Len(t, zones, 2)

	assert.Equal(t, "ISA-ZONE-5", zones[0].ZoneID)
	assert.Equal(t, "randomShapeMap-5", zones[0].Name)
	assert.Equal(t, "ISA-ZONE-7", zones[1].ZoneID, "explicit ids still win")
	assert.Equal(t, "randomShapeMap-6", zones[1].Name)
}

func TestCollectZonesSingleFeature(t *testing.T) {
	doc := `{"type":"Feature","properties":{"name":"test circle"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}`
	zones, err := collectZones([]byte(doc), zoneLoadOptions{Prefix: "Z", Start: 1, Kind: "test"})
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, "Z-1", zones[0].ZoneID)
	assert.Equal(t, "test circle", zones[0].Name)
}

func TestCollectZonesBareGeometry(t *testing.T) {
	doc := `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`
	zones, err := collectZones([]byte(doc), zoneLoadOptions{Prefix: "Z", Start: 3, Kind: "test"})
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, "Z-3", zones[0].ZoneID)
	assert.JSONEq(t, doc, string(zones[0].GeoJSON))
}

func TestCollectZonesRejectsGarbage(t *testing.T) {
	_, err := collectZones([]byte(`{not json`), zoneLoadOptions{})
	assert.Error(t, err)

	_, err = collectZones([]byte(`{"coordinates":[]}`), zoneLoadOptions{})
	assert.Error(t, err, "documents without a GeoJSON type are rejected")
}
