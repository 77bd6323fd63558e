// Package rules loads the per-profile rules file: channel overrides, legacy
// channel renames and the SLA threshold tables.
package rules

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/salesops-cli/internal/channel"
	"github.com/sells-group/salesops-cli/internal/reference"
	"github.com/sells-group/salesops-cli/internal/sla"
)

// Rule types accepted in a rules file.
const (
	TypeDateGate        = "date_gate"
	TypeCategory        = "category"
	TypeCategorySet     = "category_set"
	TypePartnerCategory = "partner_category"
)

// File is the parsed rules file.
type File struct {
	Rules   []RuleConfig      `yaml:"rules"`
	Relabel map[string]string `yaml:"relabel"`
	SLA     SLAConfig         `yaml:"sla"`
}

// RuleConfig is one channel override. Which fields apply depends on Type.
type RuleConfig struct {
	Name                string   `yaml:"name"`
	Type                string   `yaml:"type"`
	Channel             string   `yaml:"channel"`
	Since               string   `yaml:"since"` // YYYY-MM-DD
	Responsibles        []string `yaml:"responsibles"`
	Category            string   `yaml:"category"`
	Categories          []string `yaml:"categories"`
	ExcludeResponsibles []string `yaml:"exclude_responsibles"`
	Partner             string   `yaml:"partner"`
}

// SLAConfig holds threshold tables keyed by partner, channel, category and
// product type, in that order of precedence.
type SLAConfig struct {
	Labels     sla.Labels      `yaml:"labels"`
	Thresholds ThresholdConfig `yaml:"thresholds"`
	Buckets    []sla.Bucket    `yaml:"buckets"`
}

// ThresholdConfig maps keys to maximum business days.
type ThresholdConfig struct {
	Partner     map[string]int `yaml:"partner"`
	Channel     map[string]int `yaml:"channel"`
	Category    map[string]int `yaml:"category"`
	ProductType map[string]int `yaml:"product_type"`
}

// Load reads and validates a rules file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rules: read %s", path)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, eris.Wrapf(err, "rules: %s", path)
	}
	return f, nil
}

// Parse decodes and validates rules file content. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, eris.Wrap(err, "rules: parse")
	}
	f.normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks rule names, types and required fields, and that the relabel
// map and buckets are well formed.
func (f *File) Validate() error {
	seen := make(map[string]struct{}, len(f.Rules))
	for i, r := range f.Rules {
		if strings.TrimSpace(r.Name) == "" {
			return eris.Errorf("rules: rule %d has no name", i+1)
		}
		if _, dup := seen[r.Name]; dup {
			return eris.Errorf("rules: duplicate rule name %q", r.Name)
		}
		seen[r.Name] = struct{}{}
		if strings.TrimSpace(r.Channel) == "" {
			return eris.Errorf("rules: rule %q has no channel", r.Name)
		}
		if err := r.validate(); err != nil {
			return err
		}
	}

	for legacy, current := range f.Relabel {
		if strings.TrimSpace(current) == "" {
			return eris.Errorf("rules: relabel %q has no replacement", legacy)
		}
		if _, chained := f.Relabel[current]; chained && current != legacy {
			return eris.Errorf("rules: relabel %q -> %q is itself relabeled", legacy, current)
		}
	}

	for i, b := range f.SLA.Buckets {
		if b.Label == "" {
			return eris.Errorf("rules: bucket %d has no label", i+1)
		}
		if b.Max < 0 && i != len(f.SLA.Buckets)-1 {
			return eris.Errorf("rules: open-ended bucket %q must be last", b.Label)
		}
		if i > 0 && b.Max >= 0 && b.Max <= f.SLA.Buckets[i-1].Max {
			return eris.Errorf("rules: bucket %q max must increase", b.Label)
		}
	}
	return nil
}

// normalize folds channel names to the form the lookup table stores, so
// relabel keys and rule channels compare equal to resolved channels.
func (f *File) normalize() {
	for i := range f.Rules {
		f.Rules[i].Channel = reference.NormalizeKey(f.Rules[i].Channel)
	}
	if len(f.Relabel) == 0 {
		return
	}
	relabel := make(map[string]string, len(f.Relabel))
	for legacy, current := range f.Relabel {
		relabel[reference.NormalizeKey(legacy)] = reference.NormalizeKey(current)
	}
	f.Relabel = relabel
}

func (r RuleConfig) validate() error {
	switch r.Type {
	case TypeDateGate:
		if _, err := time.Parse(time.DateOnly, r.Since); err != nil {
			return eris.Wrapf(err, "rules: rule %q since", r.Name)
		}
		if len(r.Responsibles) == 0 {
			return eris.Errorf("rules: rule %q needs responsibles", r.Name)
		}
	case TypeCategory:
		if r.Category == "" {
			return eris.Errorf("rules: rule %q needs category", r.Name)
		}
	case TypeCategorySet:
		if len(r.Categories) == 0 {
			return eris.Errorf("rules: rule %q needs categories", r.Name)
		}
	case TypePartnerCategory:
		if r.Partner == "" || r.Category == "" {
			return eris.Errorf("rules: rule %q needs partner and category", r.Name)
		}
	default:
		return eris.Errorf("rules: rule %q has unknown type %q", r.Name, r.Type)
	}
	return nil
}

// ChannelRules builds the ordered override list. Date cutoffs are midnight in loc.
func (f *File) ChannelRules(loc *time.Location) []channel.Rule {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]channel.Rule, 0, len(f.Rules))
	for _, r := range f.Rules {
		switch r.Type {
		case TypeDateGate:
			since, _ := time.ParseInLocation(time.DateOnly, r.Since, loc)
			out = append(out, channel.DateGate{ID: r.Name, Assign: r.Channel, Since: since, Responsibles: r.Responsibles})
		case TypeCategory:
			out = append(out, channel.Category{ID: r.Name, Assign: r.Channel, Category: r.Category, ExcludeResponsibles: r.ExcludeResponsibles})
		case TypeCategorySet:
			out = append(out, channel.CategorySet{ID: r.Name, Assign: r.Channel, Categories: r.Categories, ExcludeResponsibles: r.ExcludeResponsibles})
		case TypePartnerCategory:
			out = append(out, channel.PartnerCategory{ID: r.Name, Assign: r.Channel, Partner: r.Partner, Category: r.Category})
		}
	}
	return out
}

// Thresholds builds the SLA threshold tables.
func (f *File) Thresholds() sla.Thresholds {
	t := f.SLA.Thresholds
	return sla.NewThresholds(t.Partner, t.Channel, t.Category, t.ProductType)
}

// Labels returns the configured SLA labels, or the defaults.
func (f *File) Labels() sla.Labels {
	if f.SLA.Labels.Within == "" && f.SLA.Labels.Out == "" {
		return sla.DefaultLabels
	}
	return f.SLA.Labels
}
