package classifier

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// Field selects which part of a reference update a rule inspects.
type Field string

const (
	FieldRepository Field = "repository"
	FieldBranch     Field = "branch"
)

// TokenRule maps a substring token to a value. Rules are evaluated in
// declaration order and the first match wins.
type TokenRule struct {
	Token    string `yaml:"token"`
	Value    string `yaml:"value"`
	FoldCase bool   `yaml:"fold_case,omitempty"`
}

// PipelineRule selects the pipeline to start. An empty Pipeline means the
// configured default pipeline.
type PipelineRule struct {
	Token    string `yaml:"token"`
	Field    Field  `yaml:"field"`
	Pipeline string `yaml:"pipeline,omitempty"`
	FoldCase bool   `yaml:"fold_case,omitempty"`
}

// RuleSet is the complete classification table.
type RuleSet struct {
	BranchKeys    []string       `yaml:"branch_keys"`
	Variants      []TokenRule    `yaml:"variants"`
	VariantTypes  []TokenRule    `yaml:"variant_types"`
	Pipelines     []PipelineRule `yaml:"pipelines"`
	BuildVariants []string       `yaml:"build_variants"`
}

// DefaultRules returns the stock table: repository tokens "la" and
// "manifest", branch tokens "DigitalTwin" and "mm_release", and the build
// variant tokens parsed out of branch names by the notifier.
func DefaultRules(branchKeys []string) RuleSet {
	return RuleSet{
		BranchKeys: append([]string(nil), branchKeys...),
		Variants: []TokenRule{
			{Token: "la", Value: "la"},
			{Token: "manifest", Value: "manifest"},
		},
		VariantTypes: []TokenRule{
			{Token: "DigitalTwin", Value: "digitaltwin"},
			{Token: "mm_release", Value: "mm"},
		},
		Pipelines: []PipelineRule{
			{Token: "la", Field: FieldRepository},
			{Token: "manifest", Field: FieldRepository},
			{Token: "mm_release", Field: FieldBranch},
		},
		BuildVariants: []string{"DT12", "DJ12", "DT7", "DJ7"},
	}
}

// Validate checks the table is usable.
func (r RuleSet) Validate() error {
	var problems []string
	if len(r.BranchKeys) == 0 {
		problems = append(problems, "branch_keys is empty")
	}
	if len(r.Variants) == 0 {
		problems = append(problems, "variants is empty")
	}
	if len(r.VariantTypes) == 0 {
		problems = append(problems, "variant_types is empty")
	}
	for i, v := range r.Variants {
		if v.Token == "" || v.Value == "" {
			problems = append(problems, fmt.Sprintf("variants[%d] needs token and value", i))
		}
	}
	for i, v := range r.VariantTypes {
		if v.Token == "" || v.Value == "" {
			problems = append(problems, fmt.Sprintf("variant_types[%d] needs token and value", i))
		}
	}
	for i, p := range r.Pipelines {
		if p.Token == "" {
			problems = append(problems, fmt.Sprintf("pipelines[%d] needs a token", i))
		}
		if p.Field != FieldRepository && p.Field != FieldBranch {
			problems = append(problems, fmt.Sprintf("pipelines[%d] has unknown field %q", i, p.Field))
		}
	}
	for i, b := range r.BuildVariants {
		if strings.TrimSpace(b) == "" {
			problems = append(problems, fmt.Sprintf("build_variants[%d] is blank", i))
		}
	}
	if len(problems) > 0 {
		return ferrors.ValidationError("invalid classification rules").
			WithContext("problems", problems).
			Build()
	}
	return nil
}

// LoadRules reads a YAML rules file. Sections missing from the file keep the
// values from base.
func LoadRules(path string, base RuleSet) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, ferrors.WrapError(err, ferrors.CategoryConfig, "read rules file").
			WithContext("path", path).
			Build()
	}
	return ParseRules(data, base)
}

// ParseRules decodes YAML rules over base. ${VAR} references are expanded
// from the environment.
func ParseRules(data []byte, base RuleSet) (RuleSet, error) {
	var file RuleSet
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
		return RuleSet{}, ferrors.WrapError(err, ferrors.CategoryConfig, "parse rules file").Build()
	}

	merged := base
	if file.BranchKeys != nil {
		merged.BranchKeys = file.BranchKeys
	}
	if file.Variants != nil {
		merged.Variants = file.Variants
	}
	if file.VariantTypes != nil {
		merged.VariantTypes = file.VariantTypes
	}
	if file.Pipelines != nil {
		merged.Pipelines = file.Pipelines
	}
	if file.BuildVariants != nil {
		merged.BuildVariants = file.BuildVariants
	}
	if err := merged.Validate(); err != nil {
		return RuleSet{}, err
	}
	return merged, nil
}
