package reference

import (
	"go.uber.org/zap"
)

// ChannelTable maps normalized branch names (SEDE) to channel names.
// The zero value is an empty table.
type ChannelTable struct {
	channels map[string]string
}

// ChannelEntry is one (branch, channel) pair from a reference source.
type ChannelEntry struct {
	Branch  string
	Channel string
}

// NewChannelTable builds a table from entries, normalizing branch keys.
// Entries with a blank branch or channel are skipped. When a branch repeats,
// the first entry wins.
func NewChannelTable(entries []ChannelEntry) ChannelTable {
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		key := NormalizeKey(e.Branch)
		ch := NormalizeKey(e.Channel)
		if key == "" || ch == "" {
			continue
		}
		if prev, ok := m[key]; ok {
			if prev != ch {
				zap.L().Warn("reference: conflicting channel for branch, keeping first",
					zap.String("branch", key),
					zap.String("kept", prev),
					zap.String("ignored", ch),
				)
			}
			continue
		}
		m[key] = ch
	}
	return ChannelTable{channels: m}
}

// Lookup returns the channel for a branch name (normalized before lookup).
func (c ChannelTable) Lookup(branch string) (string, bool) {
	if c.channels == nil {
		return "", false
	}
	ch, ok := c.channels[NormalizeKey(branch)]
	return ch, ok
}

// Len returns the number of branches in the table.
func (c ChannelTable) Len() int {
	return len(c.channels)
}
