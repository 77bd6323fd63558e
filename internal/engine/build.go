package engine

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/salesops-cli/internal/channel"
	"github.com/sells-group/salesops-cli/internal/config"
	"github.com/sells-group/salesops-cli/internal/db"
	"github.com/sells-group/salesops-cli/internal/pivot"
	"github.com/sells-group/salesops-cli/internal/reference"
	"github.com/sells-group/salesops-cli/internal/rules"
	"github.com/sells-group/salesops-cli/internal/sla"
)

// Reference holds the read-only tables shared by every batch of a run.
type Reference struct {
	Holidays reference.HolidaySet
	Channels reference.ChannelTable
}

// New builds an Engine for a profile. A nil rules file means no overrides,
// no relabels and no SLA thresholds.
func New(p config.Profile, rf *rules.File, ref Reference) (*Engine, error) {
	order, err := pivot.ParseSlotOrder(p.SlotOrder)
	if err != nil {
		return nil, eris.Wrap(err, "engine: profile")
	}
	policy, err := sla.ParseWeekendPolicy(p.WeekendPolicy)
	if err != nil {
		return nil, eris.Wrap(err, "engine: profile")
	}
	if rf == nil {
		rf = &rules.File{}
	}
	loc := p.Location()

	return &Engine{
		HeaderFields: p.HeaderFields,
		Fields:       p.Fields,
		Layouts:      p.DateLayouts,
		Location:     loc,
		Pivoter: &pivot.Pivoter{
			Fields:     p.ProductFields,
			Slots:      p.Slots,
			Order:      order,
			PriceField: p.PriceField,
		},
		Classifier: &channel.Classifier{
			Rules:  rf.ChannelRules(loc),
			Table:  ref.Channels,
			Fields: p.Fields,
		},
		LinkedOrders: p.LinkedOrders,
		Relabel:      rf.Relabel,
		SLA: &sla.Calculator{
			Policy:     policy,
			Holidays:   ref.Holidays,
			Offset:     p.SLAOffset,
			Thresholds: rf.Thresholds(),
			Labels:     rf.Labels(),
			Buckets:    rf.SLA.Buckets,
			Location:   loc,
		},
		Columns: Columns(p.Columns),
	}, nil
}

// LoadReference loads the holiday calendar and channel table configured in
// cfg, using pool for query sources when it is not nil. Unavailable sources
// yield empty tables.
func LoadReference(ctx context.Context, cfg config.ReferenceConfig, p config.Profile, pool db.Pool) Reference {
	l := &reference.Loader{Pool: pool, Layouts: p.DateLayouts, Location: p.Location()}
	return Reference{
		Holidays: l.Holidays(ctx, cfg.Holidays),
		Channels: l.Channels(ctx, cfg.Channels),
	}
}

// ForProfile resolves a profile by name, loads its rules file and the
// reference tables, and builds the Engine.
func ForProfile(ctx context.Context, cfg *config.Config, name string, pool db.Pool) (*Engine, config.Profile, error) {
	return NewCatalog(cfg, pool).Engine(ctx, name)
}
