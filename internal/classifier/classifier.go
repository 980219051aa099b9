// Package classifier maps source-control reference updates onto build
// variants through an ordered rule table.
package classifier

import (
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/text/cases"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation"
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/logfields"
)

// Classification is the routing decision for one reference update.
type Classification struct {
	Variant      string
	VariantType  string
	BranchPrefix string
	Pipeline     string
	GroupID      string
	DedupID      string
}

// Classifier evaluates a RuleSet. The table can be swapped at runtime with
// Reload; in-flight calls keep the table they started with.
type Classifier struct {
	rules           atomic.Pointer[RuleSet]
	defaultPipeline string
}

// New builds a classifier. defaultPipeline fills pipeline rules that do not
// name a pipeline.
func New(rules RuleSet, defaultPipeline string) (*Classifier, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	c := &Classifier{defaultPipeline: defaultPipeline}
	c.rules.Store(&rules)
	return c, nil
}

// Reload replaces the rule table after validating it.
func (c *Classifier) Reload(rules RuleSet) error {
	if err := rules.Validate(); err != nil {
		return err
	}
	c.rules.Store(&rules)
	slog.Info("Classification rules reloaded",
		slog.Int("variants", len(rules.Variants)),
		slog.Int("variant_types", len(rules.VariantTypes)),
		slog.Int("pipelines", len(rules.Pipelines)))
	return nil
}

// Rules returns the active table.
func (c *Classifier) Rules() RuleSet { return *c.rules.Load() }

// Classify decides whether a push to branch in repository should be queued.
// None means the event is not applicable; that is not an error.
func (c *Classifier) Classify(repository, branch string) foundation.Option[Classification] {
	rules := c.rules.Load()
	attrs := []any{logfields.Repository(repository), logfields.Branch(branch)}

	variant, ok := matchToken(rules.Variants, repository, "variant")
	if !ok {
		slog.Info("Declining reference update: no variant token in repository", attrs...)
		return foundation.None[Classification]()
	}
	variantType, ok := matchToken(rules.VariantTypes, branch, "variant_type")
	if !ok {
		slog.Info("Declining reference update: no variant type token in branch", attrs...)
		return foundation.None[Classification]()
	}

	prefix, _, _ := strings.Cut(branch, "/")
	if !branchKeyAllowed(rules.BranchKeys, prefix) {
		slog.Info("Declining reference update: branch prefix not allowed",
			append(attrs, slog.String("prefix", prefix), slog.Any("branch_keys", rules.BranchKeys))...)
		return foundation.None[Classification]()
	}

	pipeline, ok := c.matchPipeline(rules.Pipelines, repository, branch)
	if !ok {
		slog.Info("Declining reference update: no pipeline rule matched", attrs...)
		return foundation.None[Classification]()
	}

	return foundation.Some(Classification{
		Variant:      variant,
		VariantType:  variantType,
		BranchPrefix: prefix,
		Pipeline:     pipeline,
		GroupID:      branch,
		DedupID:      variant + "/" + prefix + "/" + variantType,
	})
}

// BuildVariant extracts the build variant token (DT12, DJ7, ...) from a
// branch name. The leftmost occurrence wins; ties go to the earlier token.
// Matching ignores case and the result is upper-cased.
func (c *Classifier) BuildVariant(branch string) (string, error) {
	rules := c.rules.Load()
	folded := fold(branch)

	best, bestAt := "", -1
	for _, token := range rules.BuildVariants {
		at := strings.Index(folded, fold(token))
		if at < 0 {
			continue
		}
		if bestAt < 0 || at < bestAt {
			best, bestAt = token, at
		}
	}
	if bestAt < 0 {
		return "", ferrors.VariantNotFound(branch)
	}
	return strings.ToUpper(best), nil
}

func (c *Classifier) matchPipeline(rules []PipelineRule, repository, branch string) (string, bool) {
	for _, r := range rules {
		subject := repository
		if r.Field == FieldBranch {
			subject = branch
		}
		if !contains(subject, r.Token, r.FoldCase) {
			continue
		}
		if r.Pipeline != "" {
			return r.Pipeline, true
		}
		if c.defaultPipeline == "" {
			return "", false
		}
		return c.defaultPipeline, true
	}
	return "", false
}

func matchToken(rules []TokenRule, subject, kind string) (string, bool) {
	var matched []string
	for _, r := range rules {
		if contains(subject, r.Token, r.FoldCase) {
			matched = append(matched, r.Token)
		}
	}
	if len(matched) == 0 {
		return "", false
	}
	if len(matched) > 1 {
		slog.Debug("Multiple tokens matched; first rule wins",
			slog.String("kind", kind),
			slog.String("subject", subject),
			slog.Any("tokens", matched))
	}
	for _, r := range rules {
		if r.Token == matched[0] {
			return r.Value, true
		}
	}
	return "", false
}

func branchKeyAllowed(keys []string, prefix string) bool {
	if prefix == "" {
		return false
	}
	for _, k := range keys {
		if strings.EqualFold(strings.TrimSpace(k), prefix) {
			return true
		}
	}
	return false
}

func contains(subject, token string, foldCase bool) bool {
	if foldCase {
		return strings.Contains(fold(subject), fold(token))
	}
	return strings.Contains(subject, token)
}

// fold uses Unicode case folding; a Caser is stateful so one is made per call.
func fold(s string) string {
	return cases.Fold().String(s)
}
