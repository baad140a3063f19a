package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"vidmerge/internal/artifact"
	"vidmerge/internal/encoder"
	"vidmerge/internal/fileutil"
	"vidmerge/internal/ledger"
	"vidmerge/internal/logging"
	"vidmerge/internal/services"
	"vidmerge/internal/staging"
	"vidmerge/internal/videoid"
)

// RequiredInputs is the number of ids a merge request must carry.
const RequiredInputs = 2

// Pipeline stage names, as they appear in logs, errors and the ledger.
const (
	StageValidate  = "validate"
	StageResolve   = "resolve"
	StageStage     = "stage"
	StageTruncate  = "truncate"
	StageConcat    = "concatenate"
	StageOverlay   = "overlay"
	StagePublish   = "publish"
	StageReconcile = "reconcile"
)

// Request is an ordered list of raw ids; the first id plays first.
type Request struct {
	IDs []string
}

// Result describes a published merge.
type Result struct {
	ID        videoid.ID
	Sources   []videoid.ID
	RunID     string
	SizeBytes int64
	BLAKE3    string
	Elapsed   time.Duration
}

// Transformer is the subset of encoder primitives the pipeline runs.
type Transformer interface {
	encoder.Truncator
	encoder.Concatenator
	encoder.Overlayer
}

// Recorder persists merge outcomes. *ledger.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, e ledger.Entry) (int64, error)
}

// Options tunes an Orchestrator.
type Options struct {
	// MaxDuration caps each input before concatenation.
	MaxDuration time.Duration
	// Recorder, when set, receives one entry per attempt.
	Recorder Recorder
	// NewID mints result ids; defaults to videoid.New.
	NewID func() videoid.ID
}

// Orchestrator runs merges. It is safe for concurrent use; requests share
// nothing but the store.
type Orchestrator struct {
	store       artifact.Store
	transformer Transformer
	area        *staging.Area
	maxDuration time.Duration
	recorder    Recorder
	newID       func() videoid.ID
	logger      *slog.Logger

	cleanup sync.WaitGroup
}

// New constructs an Orchestrator.
func New(store artifact.Store, transformer Transformer, area *staging.Area, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 30 * time.Second
	}
	if opts.NewID == nil {
		opts.NewID = videoid.New
	}
	return &Orchestrator{
		store:       store,
		transformer: transformer,
		area:        area,
		maxDuration: opts.MaxDuration,
		recorder:    opts.Recorder,
		newID:       opts.NewID,
		logger:      logging.NewComponentLogger(logger, "merge"),
	}
}

// Wait blocks until every background reconcile has finished.
func (o *Orchestrator) Wait() {
	o.cleanup.Wait()
}

// Merge runs the pipeline for req.
func (o *Orchestrator) Merge(ctx context.Context, req Request) (Result, error) {
	ctx = context.WithoutCancel(ctx)
	started := time.Now()
	logger := logging.WithContext(ctx, o.logger)
	logger.Info("merge started",
		logging.String(logging.FieldEventType, "merge_start"),
		logging.Strings("ids", req.IDs),
	)

	result, err := o.run(ctx, req)
	result.Elapsed = time.Since(started)
	o.finish(ctx, req, result, err, started)
	return result, err
}

func (o *Orchestrator) run(ctx context.Context, req Request) (Result, error) {
	ids, err := Validate(req)
	if err != nil {
		return Result{}, err
	}

	presences, err := artifact.Resolve(services.WithStage(ctx, StageResolve), o.store, ids...)
	if err != nil {
		return Result{}, err
	}
	if err := Decide(presences); err != nil {
		return Result{}, err
	}

	run, err := o.area.Begin(ctx, staging.PrefixMerge)
	if err != nil {
		return Result{}, err
	}
	defer o.reconcile(ctx, run)

	result, err := o.transform(services.WithRunID(ctx, run.ID()), run, ids)
	result.RunID = run.ID()
	return result, err
}

// Validate enforces the request shape and parses every id. Malformed ids are
// named by position (id1, id2, ...).
func Validate(req Request) ([]videoid.ID, error) {
	switch {
	case len(req.IDs) < RequiredInputs:
		return nil, services.Reject(services.KindMissingIDs, fmt.Sprintf("exactly %d video ids are required", RequiredInputs))
	case len(req.IDs) > RequiredInputs:
		return nil, services.Reject(services.KindTooManyIDs, fmt.Sprintf("exactly %d video ids are required", RequiredInputs))
	}
	ids := make([]videoid.ID, len(req.IDs))
	var malformed []string
	for i, raw := range req.IDs {
		id, err := videoid.Parse(raw)
		if err != nil {
			malformed = append(malformed, fmt.Sprintf("id%d", i+1))
			continue
		}
		ids[i] = id
	}
	if len(malformed) > 0 {
		return nil, services.Reject(services.KindMalformedID, "malformed video id", malformed...)
	}
	return ids, nil
}

// Decide applies the tier rules to resolved ids. Any id already in the merged
// tier rejects the request, whatever the other ids' state; an id present in
// both tiers counts as merged. Otherwise any id absent from both tiers is not
// found. Offending ids are named once each, in request order.
func Decide(presences []artifact.Presence) error {
	var merged, absent []string
	for _, p := range presences {
		switch {
		case p.Merged:
			merged = appendUnique(merged, string(p.ID))
		case p.Absent():
			absent = appendUnique(absent, string(p.ID))
		}
	}
	if len(merged) > 0 {
		return services.Reject(services.KindAlreadyMerged, "video already merged", merged...)
	}
	if len(absent) > 0 {
		return services.Reject(services.KindNotFound, "video not found", absent...)
	}
	return nil
}

func appendUnique(list []string, value string) []string {
	if slices.Contains(list, value) {
		return list
	}
	return append(list, value)
}

func (o *Orchestrator) transform(ctx context.Context, run *staging.Run, ids []videoid.ID) (Result, error) {
	inputs := make([]string, len(ids))
	cuts := make([]string, len(ids))
	for i := range ids {
		inputs[i] = run.Path(fmt.Sprintf("input-%d.mp4", i))
		cuts[i] = run.Path(fmt.Sprintf("cut-%d.mp4", i))
	}

	err := o.stage(ctx, StageStage, func(ctx context.Context) error {
		return fanOut(ctx, len(ids), func(ctx context.Context, i int) error {
			err := o.store.Download(ctx, artifact.TierUploaded, ids[i], inputs[i])
			if services.KindOf(err) == services.KindNotFound {
				// Deleted between resolution and the download.
				return services.Reject(services.KindNotFound, "video not found", string(ids[i]))
			}
			return err
		})
	})
	if err != nil {
		return Result{}, err
	}

	err = o.stage(ctx, StageTruncate, func(ctx context.Context) error {
		return fanOut(ctx, len(ids), func(ctx context.Context, i int) error {
			return o.transformer.Truncate(ctx, inputs[i], cuts[i], o.maxDuration)
		})
	})
	o.release(ctx, run, inputs...)
	if err != nil {
		return Result{}, err
	}

	joined := run.Path("joined.mp4")
	err = o.stage(ctx, StageConcat, func(ctx context.Context) error {
		return o.transformer.Concatenate(ctx, cuts, joined)
	})
	o.release(ctx, run, cuts...)
	if err != nil {
		return Result{}, err
	}

	branded := run.Path("branded.mp4")
	err = o.stage(ctx, StageOverlay, func(ctx context.Context) error {
		return o.transformer.Overlay(ctx, joined, branded)
	})
	o.release(ctx, run, joined)
	if err != nil {
		return Result{}, err
	}

	var result Result
	err = o.stage(ctx, StagePublish, func(ctx context.Context) error {
		sum, err := fileutil.HashFile(branded)
		if err != nil {
			return services.Wrap(services.KindInternal, StagePublish, "hash", "read merged output", err)
		}
		newID := o.mint(ids)
		if err := o.store.Upload(ctx, branded, artifact.TierMerged, newID); err != nil {
			return err
		}
		result = Result{ID: newID, Sources: ids, SizeBytes: sum.Size, BLAKE3: sum.BLAKE3}
		return nil
	})
	return result, err
}

// mint returns a fresh id distinct from every input.
func (o *Orchestrator) mint(inputs []videoid.ID) videoid.ID {
	for {
		id := o.newID()
		if !slices.Contains(inputs, id) {
			return id
		}
	}
}

func (o *Orchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx = services.WithStage(ctx, name)
	started := time.Now()
	if err := fn(ctx); err != nil {
		var classified *services.Error
		if !errors.As(err, &classified) {
			return services.Wrap(services.KindOf(err), name, "", "stage failed", err)
		}
		return err
	}
	logging.WithContext(ctx, o.logger).Debug("stage completed",
		logging.String(logging.FieldEventType, "merge_stage_complete"),
		logging.Duration("stage_duration", time.Since(started)),
	)
	return nil
}

func (o *Orchestrator) release(ctx context.Context, run *staging.Run, paths ...string) {
	for _, path := range paths {
		run.Release(ctx, path)
	}
}

// reconcile closes the run off the caller's path.
func (o *Orchestrator) reconcile(ctx context.Context, run *staging.Run) {
	o.cleanup.Add(1)
	go func() {
		defer o.cleanup.Done()
		if err := run.Close(); err != nil {
			logging.WarnWithContext(logging.WithContext(services.WithStage(ctx, StageReconcile), o.logger),
				"staging cleanup failed", "merge_cleanup_failed",
				logging.String(logging.FieldRunID, run.ID()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run `vidmerge staging clean` to reclaim the directory"),
				logging.String(logging.FieldImpact, "disk space held until the stale sweep"),
			)
		}
	}()
}

// fanOut runs fn for every index concurrently, waits for all of them, and
// returns the first failure in index order.
func fanOut(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = fn(ctx, i)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
