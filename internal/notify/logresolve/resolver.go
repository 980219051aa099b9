package logresolve

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation"
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/logfields"
)

// Store is the object storage holding build logs.
type Store interface {
	List(ctx context.Context, prefix string) ([]Object, error)
	Get(ctx context.Context, key string) ([]byte, error)
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Request describes the log to find.
type Request struct {
	Variant string
	Branch  string
	Success bool
}

// Result is the selected log.
type Result struct {
	Location  Location
	URL       string
	Expiry    time.Duration
	Companion foundation.Option[Companion]
}

// Resolver selects and links the log for a finished build.
type Resolver struct {
	store  Store
	prefix string
	expiry time.Duration
	// skew is added to the clock to form the success-path cutoff.
	skew time.Duration
	now  func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(r *Resolver) { r.now = now } }

// WithCutoffSkew shifts the success-path cutoff ahead of the clock.
func WithCutoffSkew(d time.Duration) Option { return func(r *Resolver) { r.skew = d } }

// NewResolver lists logs under prefix and presigns links valid for expiry.
func NewResolver(store Store, prefix string, expiry time.Duration, opts ...Option) *Resolver {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	r := &Resolver{store: store, prefix: prefix, expiry: expiry, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve finds the log object for req. It returns None when no candidate
// matched; that is reported, not retried.
func (r *Resolver) Resolve(ctx context.Context, req Request) (foundation.Option[Result], error) {
	objects, err := r.store.List(ctx, r.prefix)
	if err != nil {
		return foundation.None[Result](), err
	}
	candidates := Candidates(objects, req.Variant)

	var (
		selected Object
		ok       bool
	)
	if req.Success {
		selected, ok = SelectLatest(candidates, r.now().Add(r.skew))
	} else {
		selected, ok = SelectBranchFirst(candidates, BranchLogName(req.Branch))
	}
	if !ok {
		slog.Warn("No log object matched",
			logfields.Variant(req.Variant),
			logfields.Branch(req.Branch),
			slog.Int("listed", len(objects)),
			slog.Int("candidates", len(candidates)))
		return foundation.None[Result](), nil
	}

	loc, err := ParseLocation(selected.Key)
	if err != nil {
		return foundation.None[Result](), err
	}
	url, err := r.store.PresignGet(ctx, selected.Key, r.expiry)
	if err != nil {
		return foundation.None[Result](), err
	}

	res := Result{Location: loc, URL: url, Expiry: r.expiry}
	if req.Success {
		companion, err := r.companion(ctx, loc)
		if err != nil {
			slog.Warn("Companion artifact unreadable", logfields.ObjectKey(loc.Key), logfields.Error(err))
		} else {
			res.Companion = companion
		}
	}
	slog.Info("Resolved build log",
		logfields.ObjectKey(loc.Key),
		logfields.Variant(req.Variant),
		slog.Bool("success", req.Success))
	return foundation.Some(res), nil
}

func (r *Resolver) companion(ctx context.Context, loc Location) (foundation.Option[Companion], error) {
	objects, err := r.store.List(ctx, loc.Dir())
	if err != nil {
		return foundation.None[Companion](), err
	}
	var (
		merged Companion
		found  bool
	)
	for _, o := range objects {
		if !strings.HasSuffix(o.Key, ".txt") {
			continue
		}
		body, err := r.store.Get(ctx, o.Key)
		if err != nil {
			return foundation.None[Companion](), ferrors.WrapError(err, ferrors.CategoryStorage, "read companion artifact").
				WithContext("key", o.Key).
				Build()
		}
		merged = merged.merge(ParseCompanion(body))
		found = true
	}
	if !found {
		return foundation.None[Companion](), nil
	}
	return foundation.Some(merged), nil
}
