// Package etl runs the CDA pipeline: read and clean every dataset in
// parallel, canonicalize naturezas, build the star schema and load it.
package etl

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/cda-warehouse/internal/canon"
	"github.com/sells-group/cda-warehouse/internal/etlerr"
	"github.com/sells-group/cda-warehouse/internal/model"
	"github.com/sells-group/cda-warehouse/internal/normalize"
	"github.com/sells-group/cda-warehouse/internal/source"
	"github.com/sells-group/cda-warehouse/internal/store"
	"github.com/sells-group/cda-warehouse/internal/warehouse"
)

// Stage names carried by fatal errors.
const (
	StageNormalize    = "normalize"
	StageCanonicalize = "canonicalize"
	StageTransform    = "transform"
	StageLoad         = "load"
)

// Reader supplies the seven source datasets. *source.Source implements it.
type Reader interface {
	Cdas(ctx context.Context) ([]source.CdaRow, error)
	Naturezas(ctx context.Context) ([]model.Natureza, error)
	Situacoes(ctx context.Context) ([]model.Situacao, error)
	Probabilidades(ctx context.Context) ([]model.Probabilidade, error)
	Bridge(ctx context.Context) ([]model.CdaDevedor, error)
	DevedoresPF(ctx context.Context) ([]source.DevedorRow, error)
	DevedoresPJ(ctx context.Context) ([]source.DevedorRow, error)
}

// Options configures one run.
type Options struct {
	Replace bool // clear and reload a populated warehouse
}

// Result summarizes a successful run.
type Result struct {
	RunID     string            `json:"run_id"`
	Normalize []normalize.Stats `json:"normalize"`
	Naturezas int               `json:"naturezas"`
	RawIDs    int               `json:"raw_ids"`
	Warehouse warehouse.Stats   `json:"warehouse"`
	Loaded    store.LoadResult  `json:"loaded"`
	Elapsed   time.Duration     `json:"elapsed"`
}

// Pipeline wires a source to a store.
type Pipeline struct {
	src   Reader
	store store.Store
}

// New creates a pipeline.
func New(src Reader, st store.Store) *Pipeline {
	return &Pipeline{src: src, store: st}
}

// Run executes every stage and records the outcome in the run log. The
// first fatal error aborts the run and is returned tagged with its stage.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	log := zap.L().With(zap.String("component", "etl.pipeline"))

	run, err := p.store.StartRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "etl: start run log")
	}
	log = log.With(zap.String("run_id", run.ID))
	log.Info("run started", zap.Bool("replace", opts.Replace))

	start := time.Now()
	res, err := p.run(ctx, log, opts)
	if err != nil {
		stage := etlerr.StageOf(err)
		log.Error("run failed", zap.String("stage", stage), zap.Error(err))
		// The run context may already be cancelled; the failure must still be recorded.
		if logErr := p.store.FailRun(context.WithoutCancel(ctx), run.ID, stage, err.Error()); logErr != nil {
			log.Error("failed to record run failure", zap.Error(logErr))
		}
		return nil, err
	}
	res.RunID = run.ID
	res.Elapsed = time.Since(start)

	if err := p.store.CompleteRun(ctx, run.ID, &store.RunResult{Metadata: res.metadata()}); err != nil {
		log.Error("failed to record run completion", zap.Error(err))
	}
	log.Info("run complete",
		zap.Int64("fatos_cdas", res.Loaded["dw.fatos_cdas"]),
		zap.Int64("cdas_devedores", res.Loaded["dw.cdas_devedores"]),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, log *zap.Logger, opts Options) (*Result, error) {
	staged, stats, err := p.normalize(ctx)
	if err != nil {
		return nil, etlerr.InStage(StageNormalize, err)
	}
	for _, st := range stats {
		log.Info("dataset cleaned", st.Fields()...)
	}

	mapping, err := canon.Build(staged.Naturezas)
	if err != nil {
		return nil, etlerr.InStage(StageCanonicalize, err)
	}
	facts, err := mapping.Rewrite(staged.Cdas)
	if err != nil {
		return nil, etlerr.InStage(StageCanonicalize, err)
	}
	log.Info("naturezas canonicalized",
		zap.Int("raw_ids", mapping.RawIDs()),
		zap.Int("naturezas", len(mapping.Dimension())),
	)

	if err := ctx.Err(); err != nil {
		return nil, etlerr.InStage(StageTransform, eris.Wrap(err, "etl: cancelled"))
	}
	w, wst := warehouse.Build(warehouse.Input{
		Naturezas:      mapping.Dimension(),
		Situacoes:      staged.Situacoes,
		DevedoresPF:    staged.DevedoresPF,
		DevedoresPJ:    staged.DevedoresPJ,
		Cdas:           facts,
		Probabilidades: staged.Probabilidades,
		Bridge:         staged.Bridge,
	})
	log.Info("warehouse built", wst.Fields()...)

	loaded, err := p.store.Load(ctx, store.LoadSet{Staged: *staged, Warehouse: w}, store.LoadOptions{Replace: opts.Replace})
	if err != nil {
		return nil, etlerr.InStage(StageLoad, err)
	}

	return &Result{
		Normalize: stats,
		Naturezas: len(mapping.Dimension()),
		RawIDs:    mapping.RawIDs(),
		Warehouse: wst,
		Loaded:    loaded,
	}, nil
}

// normalize reads and cleans the seven datasets concurrently. The first
// failure cancels the others.
func (p *Pipeline) normalize(ctx context.Context) (*model.Staged, []normalize.Stats, error) {
	var (
		staged model.Staged
		stats  = make([]normalize.Stats, len(source.Datasets))
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := p.src.Cdas(gCtx)
		if err != nil {
			return err
		}
		staged.Cdas, stats[0] = normalize.Cdas(rows)
		return nil
	})
	g.Go(func() error {
		rows, err := p.src.Naturezas(gCtx)
		if err != nil {
			return err
		}
		staged.Naturezas, stats[1] = normalize.Naturezas(rows)
		return nil
	})
	g.Go(func() error {
		rows, err := p.src.Situacoes(gCtx)
		if err != nil {
			return err
		}
		staged.Situacoes, stats[2] = normalize.Situacoes(rows)
		return nil
	})
	g.Go(func() error {
		rows, err := p.src.Probabilidades(gCtx)
		if err != nil {
			return err
		}
		staged.Probabilidades, stats[3] = normalize.Probabilidades(rows)
		return nil
	})
	g.Go(func() error {
		rows, err := p.src.Bridge(gCtx)
		if err != nil {
			return err
		}
		staged.Bridge, stats[4] = normalize.Bridge(rows)
		return nil
	})
	g.Go(func() error {
		rows, err := p.src.DevedoresPF(gCtx)
		if err != nil {
			return err
		}
		staged.DevedoresPF, stats[5] = normalize.Devedores(source.DatasetDevedorPF, rows)
		return nil
	})
	g.Go(func() error {
		rows, err := p.src.DevedoresPJ(gCtx)
		if err != nil {
			return err
		}
		staged.DevedoresPJ, stats[6] = normalize.Devedores(source.DatasetDevedorPJ, rows)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return &staged, stats, nil
}

// metadata flattens the counters for the run log.
func (r *Result) metadata() map[string]any {
	meta := map[string]any{
		"naturezas":            r.Naturezas,
		"raw_ids":              r.RawIDs,
		"facts_negative":       r.Warehouse.FactsNegative,
		"bridge_orphaned":      r.Warehouse.BridgeOrphaned,
		"situacoes_duplicated": r.Warehouse.SituacoesDuplicated,
		"devedores_duplicated": r.Warehouse.DevedoresDuplicated,
		"elapsed_ms":           r.Elapsed.Milliseconds(),
	}
	for _, st := range r.Normalize {
		meta["duplicates_"+st.Dataset] = st.Duplicates
		if st.DatesNulled > 0 {
			meta["dates_nulled_"+st.Dataset] = st.DatesNulled
		}
		if st.DatesClamped > 0 {
			meta["dates_clamped_"+st.Dataset] = st.DatesClamped
		}
		if st.DocumentsNulled > 0 {
			meta["documents_nulled_"+st.Dataset] = st.DocumentsNulled
		}
	}
	for table, n := range r.Loaded {
		meta["rows_"+table] = n
	}
	return meta
}
