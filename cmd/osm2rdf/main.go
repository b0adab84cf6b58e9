package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/osm2rdf/relate-go/relate"
)

func main() {
	logger := log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lshortfile)

	if len(os.Args) < 2 {
		helptext := `Usage: osm2rdf [COMMAND] [ARGS]

Converting an extract to RDF:
osm2rdf convert INPUT.osm.pbf OUTPUT.ttl

Staging and DAG statistics only, no triple output:
osm2rdf stats INPUT.osm.pbf`
		fmt.Println(helptext)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "convert":
		runConvert(logger, os.Args[2:])
	case "stats":
		runStats(logger, os.Args[2:])
	default:
		logger.Println("unrecognized command.")
		flag.PrintDefaults()
		os.Exit(1)
	}
}

func runConvert(logger *log.Logger, args []string) {
	cmd := flag.NewFlagSet("convert", flag.ExitOnError)
	format := cmd.String("format", "turtle", "output format: turtle or ntriples")
	noFacts := cmd.Bool("no-facts", false, "skip tag/WKT/area fact emission")
	noAreaRel := cmd.Bool("no-area-relations", false, "skip area contains/intersects relations")
	noNodeRel := cmd.Bool("no-node-relations", false, "skip node contains/intersects relations")
	noWayRel := cmd.Bool("no-way-relations", false, "skip way contains/intersects relations")
	simplify := cmd.Float64("simplify", 0, "simplification level (0 disables)")
	minRatio := cmd.Float64("min-area-ratio", 0.01, "area/envelope ratio below which a named area is demoted to unnamed")
	wktPrecision := cmd.Int("wkt-precision", 7, "decimal digits kept in WKT literals")
	adminLevel := cmd.Int("admin-level", 0, "drop boundary relations coarser than this admin_level (0 disables)")
	threads := cmd.Int("threads", 0, "worker count (0 uses all CPUs)")
	tmpDir := cmd.String("tmpdir", "", "directory for staging files (default: OS temp dir)")
	bbox := cmd.String("bbox", "", "minLon,minLat,maxLon,maxLat region filter")
	boxGridZoom := cmd.Int("box-grid-zoom", 16, "BoxId grid zoom level")
	maxCutouts := cmd.Int("max-cutout-entries", 4096, "cap on cached per-tile cutout geometries per area")
	cmd.Parse(args)

	input := cmd.Arg(0)
	output := cmd.Arg(1)
	if input == "" || output == "" {
		logger.Println("USAGE: osm2rdf convert [flags] INPUT.osm.pbf OUTPUT.ttl")
		os.Exit(1)
	}

	cfg := relate.DefaultConfig()
	cfg.InputPath = input
	cfg.OutputPath = output
	cfg.NoFacts = *noFacts
	cfg.NoAreaGeomRelations = *noAreaRel
	cfg.NoNodeGeomRelations = *noNodeRel
	cfg.NoWayGeomRelations = *noWayRel
	cfg.SimplifyGeometries = *simplify
	cfg.MinAreaEnvelopeRatio = *minRatio
	cfg.WKTPrecision = *wktPrecision
	cfg.AdminLevelFilter = *adminLevel
	cfg.BboxFilter = *bbox
	cfg.BoxGridZoom = uint8(*boxGridZoom)
	cfg.MaxCutoutEntries = *maxCutouts
	if *threads > 0 {
		cfg.NumThreads = *threads
	}
	if *tmpDir != "" {
		cfg.TempDir = *tmpDir
	}
	switch *format {
	case "turtle":
		cfg.Format = relate.Turtle
	case "ntriples":
		cfg.Format = relate.NTriples
	default:
		logger.Fatalf("unknown output format %q (want turtle or ntriples)", *format)
	}

	driver := relate.NewDriver(&cfg, logger)
	if err := driver.Run(context.Background()); err != nil {
		logger.Fatalf("convert failed: %v", err)
	}
}

func runStats(logger *log.Logger, args []string) {
	cmd := flag.NewFlagSet("stats", flag.ExitOnError)
	threads := cmd.Int("threads", 0, "worker count (0 uses all CPUs)")
	bbox := cmd.String("bbox", "", "minLon,minLat,maxLon,maxLat region filter")
	cmd.Parse(args)

	input := cmd.Arg(0)
	if input == "" {
		logger.Println("USAGE: osm2rdf stats [flags] INPUT.osm.pbf")
		os.Exit(1)
	}

	cfg := relate.DefaultConfig()
	cfg.InputPath = input
	cfg.OutputPath = os.DevNull
	cfg.NoFacts = true
	cfg.BboxFilter = *bbox
	if *threads > 0 {
		cfg.NumThreads = *threads
	}

	driver := relate.NewDriver(&cfg, logger)
	if err := driver.Run(context.Background()); err != nil {
		logger.Fatalf("stats failed: %v", err)
	}
}
