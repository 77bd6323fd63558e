package reference

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salesops-cli/internal/db"
	"github.com/sells-group/salesops-cli/internal/fetcher"
	"github.com/sells-group/salesops-cli/internal/model"
)

// HolidaySource locates the non-business-day calendar. Query takes precedence
// over Path when a pool is available; it must return one text column.
type HolidaySource struct {
	Path    string `yaml:"path" mapstructure:"path"`
	Sheet   string `yaml:"sheet" mapstructure:"sheet"`
	Column  string `yaml:"column" mapstructure:"column"`
	Charset string `yaml:"charset" mapstructure:"charset"`
	Query   string `yaml:"query" mapstructure:"query"`
}

// ChannelSource locates the branch → channel table. Query must return two
// text columns: branch, channel.
type ChannelSource struct {
	Path          string `yaml:"path" mapstructure:"path"`
	Sheet         string `yaml:"sheet" mapstructure:"sheet"`
	BranchColumn  string `yaml:"branch_column" mapstructure:"branch_column"`
	ChannelColumn string `yaml:"channel_column" mapstructure:"channel_column"`
	Charset       string `yaml:"charset" mapstructure:"charset"`
	Query         string `yaml:"query" mapstructure:"query"`
}

// Loader reads reference tables once per run. Unavailable sources are replaced
// with empty tables so the run continues; a missing channel table then surfaces
// through the completeness gate.
type Loader struct {
	Pool     db.Pool // optional
	Layouts  []string
	Location *time.Location
}

// Holidays loads the holiday set, substituting an empty set on failure.
func (l *Loader) Holidays(ctx context.Context, src HolidaySource) HolidaySet {
	log := zap.L().With(zap.String("component", "reference.holidays"))

	var (
		set HolidaySet
		err error
	)
	switch {
	case src.Query != "" && l.Pool != nil:
		set, err = QueryHolidays(ctx, l.Pool, src.Query, l.Layouts, l.Location)
	case src.Path != "":
		set, err = LoadHolidaysFile(ctx, src, l.Layouts, l.Location)
	default:
		log.Warn("no holiday source configured, using empty calendar")
		return HolidaySet{}
	}
	if err != nil {
		log.Warn("holiday source unavailable, using empty calendar", zap.Error(err))
		return HolidaySet{}
	}
	log.Info("loaded holidays", zap.Int("dates", set.Len()))
	return set
}

// Channels loads the branch → channel table, substituting an empty table on failure.
func (l *Loader) Channels(ctx context.Context, src ChannelSource) ChannelTable {
	log := zap.L().With(zap.String("component", "reference.channels"))

	var (
		tbl ChannelTable
		err error
	)
	switch {
	case src.Query != "" && l.Pool != nil:
		tbl, err = QueryChannels(ctx, l.Pool, src.Query)
	case src.Path != "":
		tbl, err = LoadChannelsFile(ctx, src)
	default:
		log.Warn("no channel source configured, using empty table")
		return ChannelTable{}
	}
	if err != nil {
		log.Warn("channel source unavailable, using empty table", zap.Error(err))
		return ChannelTable{}
	}
	log.Info("loaded channel table", zap.Int("branches", tbl.Len()))
	return tbl
}

// LoadHolidaysFile reads holiday dates from a CSV or XLSX file. The date column
// defaults to "FECHA" and falls back to the first column; unparseable cells are skipped.
func LoadHolidaysFile(ctx context.Context, src HolidaySource, layouts []string, loc *time.Location) (HolidaySet, error) {
	tbl, err := fetcher.ReadTable(ctx, src.Path, fetcher.TableOptions{Sheet: src.Sheet, Charset: src.Charset})
	if err != nil {
		return HolidaySet{}, eris.Wrap(err, "reference: read holidays")
	}

	col := src.Column
	if col == "" {
		col = "FECHA"
	}
	idx, ok := tbl.Column(col)
	if !ok {
		idx = 0
	}

	var dates []time.Time
	for _, rec := range tbl.Rows {
		if idx >= len(rec) {
			continue
		}
		if d := model.ParseDate(rec[idx], layouts, loc); d != nil {
			dates = append(dates, *d)
		}
	}
	return NewHolidaySet(dates...), nil
}

// LoadChannelsFile reads (branch, channel) pairs from a CSV or XLSX file.
func LoadChannelsFile(ctx context.Context, src ChannelSource) (ChannelTable, error) {
	tbl, err := fetcher.ReadTable(ctx, src.Path, fetcher.TableOptions{Sheet: src.Sheet, Charset: src.Charset})
	if err != nil {
		return ChannelTable{}, eris.Wrap(err, "reference: read channels")
	}

	branchCol, channelCol := src.BranchColumn, src.ChannelColumn
	if branchCol == "" {
		branchCol = "SEDE"
	}
	if channelCol == "" {
		channelCol = "CANAL"
	}
	bi, ok := tbl.Column(branchCol)
	if !ok {
		return ChannelTable{}, eris.Errorf("reference: channel table has no %q column", branchCol)
	}
	ci, ok := tbl.Column(channelCol)
	if !ok {
		return ChannelTable{}, eris.Errorf("reference: channel table has no %q column", channelCol)
	}

	entries := make([]ChannelEntry, 0, len(tbl.Rows))
	for _, rec := range tbl.Rows {
		if bi >= len(rec) || ci >= len(rec) {
			continue
		}
		entries = append(entries, ChannelEntry{Branch: rec[bi], Channel: rec[ci]})
	}
	return NewChannelTable(entries), nil
}

// QueryHolidays reads holiday dates with a single-column text query.
func QueryHolidays(ctx context.Context, pool db.Pool, query string, layouts []string, loc *time.Location) (HolidaySet, error) {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return HolidaySet{}, eris.Wrap(err, "reference: query holidays")
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return HolidaySet{}, eris.Wrap(err, "reference: scan holiday")
		}
		if d := model.ParseDate(s, layouts, loc); d != nil {
			dates = append(dates, *d)
		}
	}
	if err := rows.Err(); err != nil {
		return HolidaySet{}, eris.Wrap(err, "reference: iterate holidays")
	}
	return NewHolidaySet(dates...), nil
}

// QueryChannels reads (branch, channel) pairs with a two-column text query.
func QueryChannels(ctx context.Context, pool db.Pool, query string) (ChannelTable, error) {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return ChannelTable{}, eris.Wrap(err, "reference: query channels")
	}
	defer rows.Close()

	var entries []ChannelEntry
	for rows.Next() {
		var e ChannelEntry
		if err := rows.Scan(&e.Branch, &e.Channel); err != nil {
			return ChannelTable{}, eris.Wrap(err, "reference: scan channel")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return ChannelTable{}, eris.Wrap(err, "reference: iterate channels")
	}
	return NewChannelTable(entries), nil
}
