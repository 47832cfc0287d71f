// Package provision selects the daily problem.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/verte-zerg/leetgulag/internal/catalog"
	"github.com/verte-zerg/leetgulag/internal/collection"
	"github.com/verte-zerg/leetgulag/internal/model"
)

// Catalog answers remote catalog queries.
type Catalog interface {
	Questions(ctx context.Context, difficulty model.Difficulty, listID string) ([]catalog.Question, error)
}

// Collections loads bundled lists by name.
type Collections interface {
	Load(name string) ([]collection.Record, error)
}

// State is the slice of the store the provisioner writes to.
type State interface {
	UpdatePermissions(ctx context.Context, enabled bool) error
	InitiateLoading(ctx context.Context) error
	StopLoading(ctx context.Context) error
}

// ProvisionError reports that no problem could be assigned.
type ProvisionError struct {
	Reason string
	Err    error
}

func (e *ProvisionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provision: %s: %v", e.Reason, e.Err)
	}
	return "provision: " + e.Reason
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// Provisioner picks problems from the catalog or a bundled collection.
type Provisioner struct {
	catalog     Catalog
	collections Collections
	state       State
	rnd         *rand.Rand
	logger      *slog.Logger
}

// Option customises a Provisioner.
type Option func(*Provisioner)

// WithRand replaces the random source.
func WithRand(rnd *rand.Rand) Option {
	return func(p *Provisioner) { p.rnd = rnd }
}

// WithLogger replaces the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provisioner) { p.logger = logger }
}

// New returns a Provisioner seeded with the current time.
func New(cat Catalog, collections Collections, state State, opts ...Option) *Provisioner {
	p := &Provisioner{
		catalog:     cat,
		collections: collections,
		state:       state,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provision selects a problem according to settings. The loading indicator is
// always cleared on return.
func (p *Provisioner) Provision(ctx context.Context, settings model.Settings) (problem model.Problem, err error) {
	defer func() {
		if serr := p.state.StopLoading(ctx); serr != nil {
			p.logger.Warn("failed to clear loading indicator", "error", serr)
		}
	}()
	switch settings.Collection.Kind {
	case model.CollectionRemote:
		return p.fromCatalog(ctx, settings)
	case model.CollectionBundled:
		return p.fromCollection(settings)
	default:
		return model.Problem{}, &ProvisionError{Reason: fmt.Sprintf("unsupported collection kind %d", settings.Collection.Kind)}
	}
}

func (p *Provisioner) fromCatalog(ctx context.Context, settings model.Settings) (model.Problem, error) {
	if err := p.state.InitiateLoading(ctx); err != nil {
		p.logger.Warn("failed to raise loading indicator", "error", err)
	}
	questions, err := p.catalog.Questions(ctx, settings.Difficulty, settings.Collection.FilterID)
	if err != nil {
		if errors.Is(err, catalog.ErrTransport) {
			p.logger.Warn("catalog unreachable, disabling permissions", "error", err)
			if perr := p.state.UpdatePermissions(ctx, false); perr != nil {
				p.logger.Warn("failed to record permissions", "error", perr)
			}
		}
		return model.Problem{}, &ProvisionError{Reason: "catalog query failed", Err: err}
	}
	if err := p.state.UpdatePermissions(ctx, true); err != nil {
		p.logger.Warn("failed to record permissions", "error", err)
	}

	eligible := make([]catalog.Question, 0, len(questions))
	for _, q := range questions {
		if q.PaidOnly && !settings.IncludePremium {
			continue
		}
		if Slug(q.Title) == "" {
			continue
		}
		eligible = append(eligible, q)
	}
	if len(eligible) == 0 {
		return model.Problem{}, &ProvisionError{Reason: fmt.Sprintf("no eligible problems in catalog (%d returned)", len(questions))}
	}
	q := eligible[p.rnd.Intn(len(eligible))]
	return model.Problem{URL: ProblemURL(q.Title), Name: q.Title}, nil
}

func (p *Provisioner) fromCollection(settings model.Settings) (model.Problem, error) {
	records, err := p.collections.Load(settings.Collection.Name)
	if err != nil {
		return model.Problem{}, &ProvisionError{Reason: "collection unavailable", Err: err}
	}
	eligible := collection.Filter(records, collection.Eligible(settings.Difficulty, settings.IncludePremium))
	if len(eligible) == 0 {
		return model.Problem{}, &ProvisionError{Reason: fmt.Sprintf("no eligible problems in %s", settings.Collection.Name)}
	}
	r := eligible[p.rnd.Intn(len(eligible))]
	return model.Problem{URL: r.Href, Name: r.Text}, nil
}

var (
	nonLetters = regexp.MustCompile(`[^a-zA-Z\s]`)
	spaceRuns  = regexp.MustCompile(`\s+`)
)

// Slug derives the page slug from a catalog title.
func Slug(title string) string {
	s := nonLetters.ReplaceAllString(strings.TrimSpace(title), "")
	s = spaceRuns.ReplaceAllString(strings.TrimSpace(s), "-")
	return strings.ToLower(s)
}

// ProblemURL derives the canonical problem page for a catalog title.
func ProblemURL(title string) string {
	return model.ProblemPathBase + Slug(title) + "/"
}
