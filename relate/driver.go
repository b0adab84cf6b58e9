package relate

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

// Driver wires together the reader, staging store, engine, and serializer
// into the full pipeline of §4.9: a goroutine worker pool over
// work-sharing loops, built on errgroup.Group, with no cooperative
// cancellation beyond errgroup's inherited context (used only to abort on
// the first fatal error).
type Driver struct {
	cfg    *Config
	logger *log.Logger
	stats  *Stats
}

// NewDriver builds a driver from a validated Config.
func NewDriver(cfg *Config, logger *log.Logger) *Driver {
	return &Driver{cfg: cfg, logger: logger, stats: NewStats()}
}

// Run executes the full pipeline: stage every feature from the extract,
// build the R-tree and DAG over named areas, then relate every remaining
// probe (unnamed areas, ways, nodes), writing every triple to out.
func (d *Driver) Run(ctx context.Context) error {
	if err := d.cfg.Validate(); err != nil {
		return err
	}

	staging, err := NewStaging(d.cfg)
	if err != nil {
		return err
	}
	defer func() {
		staging.Close()
		os.RemoveAll(staging.Dir())
	}()

	outFile, err := os.Create(d.cfg.OutputPath)
	if err != nil {
		return fmt.Errorf("relate: creating output file %q: %w", d.cfg.OutputPath, err)
	}
	defer outFile.Close()

	ns := DefaultNamespaces()
	serializer := NewSerializer(outFile, ns, d.cfg.Format)
	defer serializer.Close()

	var sink Sink = serializer
	countingSink := NewCountingSink(sink)
	sink = countingSink

	engine := NewEngine(d.cfg, staging, sink, d.logger, d.stats)
	defer engine.Close()

	if err := d.stage(ctx, staging, engine); err != nil {
		return fmt.Errorf("relate: stage phase: %w", err)
	}

	start := time.Now()
	if err := engine.PrepareRTree(); err != nil {
		return fmt.Errorf("relate: preparing R-tree: %w", err)
	}
	d.logf("prepared R-tree over %d named areas in %s", len(engine.areas), time.Since(start).Round(time.Millisecond))

	start = time.Now()
	if err := engine.BuildDAG(ctx); err != nil {
		return fmt.Errorf("relate: DAG build: %w", err)
	}
	d.logf("built DAG in %s", time.Since(start).Round(time.Millisecond))

	if !d.cfg.NoAreaGeomRelations {
		if err := engine.NamedAreaRelations(); err != nil {
			return fmt.Errorf("relate: named-area relations: %w", err)
		}
	}

	if err := d.relateRemaining(ctx, staging, engine); err != nil {
		return fmt.Errorf("relate: relation phase: %w", err)
	}

	d.stats.LogSummary(d.logger, "relate", time.Since(start))
	d.logf("wrote %s triples to %s", FormatCount(countingSink.Count()), d.cfg.OutputPath)
	return nil
}

// stage runs the extract reader and, for every feature it emits, applies
// the §4.7.1 staging/fact-writing gate. Fact emission and staging happen
// from the same callback so a single extract pass does both.
func (d *Driver) stage(ctx context.Context, staging *Staging, engine *Engine) error {
	reader := NewExtractReader(d.cfg, d.logger)
	region, err := ParseRegion(d.cfg.BboxFilter)
	if err != nil {
		return err
	}

	var facts *FactWriter
	if !d.cfg.NoFacts {
		facts = NewFactWriter(engine.sink, d.cfg.WKTPrecision)
	}

	handler := FeatureHandler{
		Node: func(n *NodeRecord) error {
			if facts != nil {
				if err := facts.WriteNode(n); err != nil {
					return err
				}
			}
			if d.cfg.NoNodeGeomRelations {
				return nil
			}
			return staging.StageNode(n)
		},
		Way: func(w *WayRecord) error {
			d.simplifyWay(w)
			if facts != nil {
				if err := facts.WriteWay(w); err != nil {
					return err
				}
			}
			if d.cfg.NoWayGeomRelations {
				return nil
			}
			return staging.StageWay(w)
		},
		Area: func(a *AreaRecord) error {
			d.simplifyArea(a)
			if facts != nil {
				if err := facts.WriteArea(a); err != nil {
					return err
				}
			}
			if d.cfg.NoAreaGeomRelations {
				return nil
			}
			return engine.StageArea(a)
		},
	}

	return reader.Read(ctx, staging, region, handler)
}

// relateRemaining streams every unnamed area, way, and node through the
// engine's probe logic, fanned out across NumThreads workers via
// errgroup, per §4.9's work-sharing loop model.
func (d *Driver) relateRemaining(ctx context.Context, staging *Staging, engine *Engine) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.NumThreads)

	if !d.cfg.NoAreaGeomRelations {
		if err := staging.EachUnnamedArea(func(a *AreaRecord) error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			g.Go(func() error { return engine.RelateUnnamedArea(a) })
			return nil
		}); err != nil {
			return err
		}
	}

	if !d.cfg.NoWayGeomRelations {
		if err := staging.EachWay(func(w *WayRecord) error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			g.Go(func() error { return engine.RelateWay(w) })
			return nil
		}); err != nil {
			return err
		}
	}

	if !d.cfg.NoNodeGeomRelations {
		if err := staging.EachNode(func(n *NodeRecord) error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			g.Go(func() error { return engine.RelateNode(n) })
			return nil
		}); err != nil {
			return err
		}
	}

	return g.Wait()
}

// simplifyWay applies §6.3's simplify_geometries option to w's line
// geometry, before either the fact writer renders its WKT or the engine
// stages it for relation, so both see the same reduced vertex set.
func (d *Driver) simplifyWay(w *WayRecord) {
	if d.cfg.SimplifyGeometries <= 0 {
		return
	}
	if ls, ok := Simplify(w.Geom, d.cfg.SimplifyGeometries).(orb.LineString); ok {
		w.Geom = ls
	}
}

// simplifyArea applies §6.3's simplify_geometries option to a's
// multipolygon, recomputing its envelope and geodesic area to match so the
// §4.7.1 named-area gate and §4.7.2 R-tree bounds stay consistent with the
// geometry actually staged.
func (d *Driver) simplifyArea(a *AreaRecord) {
	if d.cfg.SimplifyGeometries <= 0 {
		return
	}
	mp, ok := Simplify(a.Geom, d.cfg.SimplifyGeometries).(orb.MultiPolygon)
	if !ok {
		return
	}
	a.Geom = mp
	a.Envelopes = []orb.Bound{mp.Bound()}
	a.Area = MultiArea(mp)
}

func (d *Driver) logf(format string, args ...interface{}) {
	if d.logger != nil {
		d.logger.Printf(format, args...)
	}
}
