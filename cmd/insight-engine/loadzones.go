package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/deepseaguard/insight-engine/internal/config"
	"github.com/deepseaguard/insight-engine/internal/store"
)

var (
	zonePrefix       string
	zoneStart        int
	zoneKind         string
	zoneNameFromFile bool
)

var loadZonesCmd = &cobra.Command{
	Use:   "load-zones <file.geojson> [file.geojson...]",
	Short: "Load GeoJSON polygons into the zones table",
	Long: `Accepts FeatureCollection, Feature, or bare geometry documents and
upserts each shape by zone_id. Features may carry zone_id and name in their
properties; otherwise ids are generated as <prefix>-<n>.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runLoadZones(cmd.Context(), args)
	},
}

func init() {
	loadZonesCmd.Flags().StringVar(&zonePrefix, "prefix", "ISA-ZONE-TEST", "prefix for generated zone ids")
	loadZonesCmd.Flags().IntVar(&zoneStart, "start", 1, "starting index for generated zone ids")
	loadZonesCmd.Flags().StringVar(&zoneKind, "kind", "restricted", "zone kind label")
	loadZonesCmd.Flags().BoolVar(&zoneNameFromFile, "name-from-file", false, "name zones <filename>-<n>")
}

func runLoadZones(ctx context.Context, files []string) {
	dsn, err := config.LoadDatabaseURL()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load database configuration")
	}
	st, err := store.New(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to spatial store")
	}
	defer st.Close()

	var total int
	for _, path := range files {
		doc, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("Skipping unreadable file")
			continue
		}

		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		zones, err := collectZones(doc, zoneLoadOptions{
			Prefix:       zonePrefix,
			Start:        zoneStart,
			Kind:         zoneKind,
			NameFromFile: zoneNameFromFile,
			FileStem:     stem,
		})
		if err != nil {
			log.Fatal().Err(err).Str("file", path).Msg("Failed to parse GeoJSON")
		}

		for _, z := range zones {
			if err := st.UpsertZone(ctx, z); err != nil {
				log.Fatal().Err(err).Str("zone_id", z.ZoneID).Msg("Failed to upsert zone")
			}
		}
		log.Info().Str("file", filepath.Base(path)).Int("zones", len(zones)).Msg("Zones upserted")
		total += len(zones)
	}

	count, err := st.CountZones(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count zones")
	}
	log.Info().Int("upserted", total).Int64("zones_total", count).Msg("Zone load complete")
}

// zoneLoadOptions shape the generated ids and names for one file.
type zoneLoadOptions struct {
	Prefix       string
	Start        int
	Kind         string
	NameFromFile bool
	FileStem     string
}

type geoFeature struct {
	Type       string          `json:"type"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

type geoDocument struct {
	Type       string          `json:"type"`
	Features   []geoFeature    `json:"features"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// collectZones reads one GeoJSON document into zone upserts. Accepts a
// FeatureCollection, a single Feature, or a bare geometry. Features
// without geometry are skipped and consume no generated id; geometry
// validation itself happens in PostGIS at upsert time.
func collectZones(doc []byte, opts zoneLoadOptions) ([]store.ZoneUpsert, error) {
	var parsed geoDocument
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return nil, fmt.Errorf("parsing GeoJSON document: %w", err)
	}

	var features []geoFeature
	switch strings.ToLower(parsed.Type) {
	case "featurecollection":
		features = parsed.Features
	case "feature":
		features = []geoFeature{{Properties: parsed.Properties, Geometry: parsed.Geometry}}
	case "":
		return nil, fmt.Errorf("document has no GeoJSON type")
	default:
		// Bare geometry: the whole document is the shape.
		features = []geoFeature{{Geometry: json.RawMessage(doc)}}
	}

	zones := make([]store.ZoneUpsert, 0, len(features))
	idx := opts.Start
	for _, feat := range features {
		if len(feat.Geometry) == 0 || string(feat.Geometry) == "null" {
			continue
		}

		zoneID := propString(feat.Properties, "zone_id")
		if zoneID == "" {
			zoneID = fmt.Sprintf("%s-%d", opts.Prefix, idx)
		}
		name := propString(feat.Properties, "name")
		if opts.NameFromFile {
			name = fmt.Sprintf("%s-%d", opts.FileStem, idx)
		}
		if name == "" {
			name = zoneID
		}

		zones = append(zones, store.ZoneUpsert{
			ZoneID:  zoneID,
			Name:    name,
			Kind:    opts.Kind,
			GeoJSON: feat.Geometry,
		})
		idx++
	}
	return zones, nil
}

func propString(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}
