package core

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Fetcher retrieves the file at a location. Missing files report ErrNotFound.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (io.ReadCloser, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, location string) (io.ReadCloser, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	return f(ctx, location)
}

const (
	opLoad     = "comparison.load"
	opCacheHit = "comparison.cache_hit"
	opFetch    = "comparison.fetch"
)

type loaderOptions struct {
	logger      Logger
	clock       Clock
	metrics     MetricsRecorder
	tracer      Tracer
	cache       ComparisonCache
	collisions  CollisionPolicy
	urlTemplate string
	baseURL     string
}

func defaultLoaderOptions() loaderOptions {
	return loaderOptions{
		logger:     noopLogger{},
		clock:      systemClock{},
		metrics:    noopMetrics{},
		tracer:     noopTracer{},
		collisions: CollisionOverwrite,
	}
}

// LoaderOption customises a Loader.
type LoaderOption func(*loaderOptions)

// WithLogger sets the loader's logger.
func WithLogger(l Logger) LoaderOption {
	return func(o *loaderOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the time source used for latency measurements.
func WithClock(c Clock) LoaderOption {
	return func(o *loaderOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) LoaderOption {
	return func(o *loaderOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) LoaderOption {
	return func(o *loaderOptions) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithCache shares a cache between loaders. By default each loader owns one.
func WithCache(c ComparisonCache) LoaderOption {
	return func(o *loaderOptions) {
		if c != nil {
			o.cache = c
		}
	}
}

// WithCollisionPolicy sets how rows folding onto the same name are handled.
func WithCollisionPolicy(p CollisionPolicy) LoaderOption {
	return func(o *loaderOptions) {
		if p != "" {
			o.collisions = p
		}
	}
}

// WithURLTemplate overrides the project's pairwise file template.
func WithURLTemplate(tmpl string) LoaderOption {
	return func(o *loaderOptions) { o.urlTemplate = tmpl }
}

// WithBaseURL overrides the project's base location.
func WithBaseURL(base string) LoaderOption {
	return func(o *loaderOptions) { o.baseURL = base }
}

// Loader builds pairwise comparisons for a project and caches them by
// unordered treatment pair.
type Loader struct {
	project *Project
	fetcher Fetcher
	opts    loaderOptions
	group   singleflight.Group
}

// NewLoader returns a loader reading files through fetcher.
func NewLoader(project *Project, fetcher Fetcher, opts ...LoaderOption) *Loader {
	o := defaultLoaderOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.cache == nil {
		o.cache = NewMemoryCache()
	}
	if o.urlTemplate == "" {
		o.urlTemplate = project.PairwiseName()
	}
	if o.baseURL == "" {
		o.baseURL = project.BaseURL()
	}
	return &Loader{project: project, fetcher: fetcher, opts: o}
}

// Project returns the loader's project.
func (l *Loader) Project() *Project { return l.project }

// Cache returns the loader's comparison cache.
func (l *Loader) Cache() ComparisonCache { return l.opts.cache }

// Locations returns the forward (a versus b) and backward file locations.
func (l *Loader) Locations(a, b string) (forward, backward string, err error) {
	forward, err = l.location(a, b)
	if err != nil {
		return "", "", err
	}
	backward, err = l.location(b, a)
	return forward, backward, err
}

func (l *Loader) location(a, b string) (string, error) {
	loc := strings.NewReplacer("%A", a, "%B", b).Replace(l.opts.urlTemplate)
	if l.opts.baseURL == "" {
		return loc, nil
	}
	base, err := url.Parse(l.opts.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return "", fmt.Errorf("parse pairwise location: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Load returns the comparison of a versus b. A cached comparison of the pair
// in either orientation is returned without fetching; concurrent loads of the
// same pair share one fetch.
func (l *Loader) Load(ctx context.Context, a, b string) (*PairwiseComparison, error) {
	key := NewPairKey(a, b)
	start := l.opts.clock.Now()
	if c, ok := l.opts.cache.Get(key); ok {
		l.opts.metrics.Observe(ctx, opCacheHit, true, l.opts.clock.Now().Sub(start))
		l.opts.logger.Debug("comparison cache hit", "pair", key.String())
		return c.oriented(a, b)
	}

	// The shared load outlives any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key.flightKey(), func() (any, error) {
		if c, ok := l.opts.cache.Get(key); ok {
			return c, nil
		}
		c, err := l.load(shared, a, b)
		if err != nil {
			return nil, err
		}
		return l.opts.cache.Add(key, c), nil
	})
	select {
	case <-ctx.Done():
		l.opts.metrics.Observe(ctx, opLoad, false, l.opts.clock.Now().Sub(start))
		return nil, ctx.Err()
	case res := <-ch:
		l.opts.metrics.Observe(ctx, opLoad, res.Err == nil, l.opts.clock.Now().Sub(start))
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*PairwiseComparison).oriented(a, b)
	}
}

type fetchResult struct {
	body io.ReadCloser
	err  error
}

func (l *Loader) load(ctx context.Context, a, b string) (_ *PairwiseComparison, err error) {
	ctx, span := l.opts.tracer.Start(ctx, opLoad)
	defer func() { span.End(err) }()

	for _, key := range []string{a, b} {
		if _, ok := l.project.Treatment(key); !ok {
			return nil, ErrUnknownTreatment{Key: key}
		}
	}
	forward, backward, err := l.Locations(a, b)
	if err != nil {
		return nil, err
	}

	var results [2]fetchResult
	var g errgroup.Group
	for i, loc := range []string{forward, backward} {
		i, loc := i, loc
		g.Go(func() error {
			results[i] = l.fetch(ctx, loc)
			return nil
		})
	}
	_ = g.Wait()

	var body io.ReadCloser
	loc, negate := forward, false
	switch {
	case results[0].err == nil:
		body = results[0].body
		if results[1].err == nil {
			_ = results[1].body.Close()
		}
	case results[1].err == nil:
		body = results[1].body
		loc, negate = backward, true
	default:
		return nil, ErrComparisonFileUnavailable{
			Locations: [2]string{forward, backward},
			Causes:    [2]error{results[0].err, results[1].err},
		}
	}
	defer body.Close()

	c, err := ParsePairwise(body, ParseOptions{
		TreatmentA:       a,
		TreatmentB:       b,
		NegateFoldChange: negate,
		Collisions:       l.opts.collisions,
		Canonical:        l.project.CanonicalLabel,
		Samples:          l.project.AbundanceSamples,
	})
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", loc, err)
	}

	orientation := "forward"
	if negate {
		orientation = "backward"
	}
	l.opts.logger.Info("comparison loaded",
		"treatment_a", a,
		"treatment_b", b,
		"orientation", orientation,
		"records", c.Len(),
		"min_p_value", c.MinPValue(),
	)
	if anomalies := c.Anomalies(); len(anomalies) > 0 {
		counts := make(map[AnomalyKind]int)
		for _, an := range anomalies {
			counts[an.Kind]++
		}
		l.opts.logger.Warn("recovered parse anomalies",
			"treatment_a", a,
			"treatment_b", b,
			"non_numeric_p_value", counts[AnomalyNonNumericPValue],
			"duplicate_id", counts[AnomalyDuplicateID],
			"malformed_row", counts[AnomalyMalformedRow],
		)
	}
	return c, nil
}

func (l *Loader) fetch(ctx context.Context, location string) fetchResult {
	ctx, span := l.opts.tracer.Start(ctx, opFetch)
	start := l.opts.clock.Now()
	body, err := l.fetcher.Fetch(ctx, location)
	span.End(err)
	l.opts.metrics.Observe(ctx, opFetch, err == nil, l.opts.clock.Now().Sub(start))
	if err != nil {
		l.opts.logger.Debug("pairwise fetch failed", "location", location, "error", err)
	}
	return fetchResult{body: body, err: err}
}
