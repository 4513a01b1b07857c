// Package access – access.go implements the chat allow-list used while
// group restriction is on. Entries come from ALLOWED_GROUP_IDS at startup
// and from the owner's /allow command at runtime.
//
// Default policy: with restriction on, any chat not listed is silently
// ignored.
package access

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// SourceConfig marks entries seeded from configuration.
const SourceConfig = "config"

// Entry is one allowed chat.
type Entry struct {
	// ChatID is the transport chat identifier (group JID, user JID, Discord
	// channel ID).
	ChatID string

	// AddedBy is who allowed the chat ("config" for seeded entries).
	AddedBy string

	// AddedAt is when the chat was allowed.
	AddedAt time.Time
}

// Store persists runtime entries.
type Store interface {
	LoadAll(ctx context.Context) ([]Entry, error)
	Put(ctx context.Context, e Entry) error
	Delete(ctx context.Context, chatID string) error
}

// AllowList is a concurrency-safe set of allowed chat IDs.
type AllowList struct {
	store  Store
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates an allow-list seeded with ids. store may be nil, in which
// case runtime changes last only for the process lifetime.
func New(ids []string, store Store, logger *slog.Logger) *AllowList {
	if logger == nil {
		logger = slog.Default()
	}

	al := &AllowList{
		store:   store,
		logger:  logger.With("component", "access"),
		entries: make(map[string]Entry),
	}

	now := time.Now()
	for _, id := range ids {
		if id = normalizeChatID(id); id != "" {
			al.entries[id] = Entry{ChatID: id, AddedBy: SourceConfig, AddedAt: now}
		}
	}
	return al
}

// Load merges persisted entries into the list. Seeded entries win.
func (al *AllowList) Load(ctx context.Context) error {
	if al.store == nil {
		return nil
	}

	stored, err := al.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load allow-list: %w", err)
	}

	al.mu.Lock()
	for _, e := range stored {
		if _, ok := al.entries[e.ChatID]; !ok {
			al.entries[e.ChatID] = e
		}
	}
	total := len(al.entries)
	al.mu.Unlock()

	al.logger.Info("allow-list loaded", "stored", len(stored), "total", total)
	return nil
}

// Contains reports whether chatID is allowed.
func (al *AllowList) Contains(chatID string) bool {
	al.mu.RLock()
	defer al.mu.RUnlock()
	_, ok := al.entries[normalizeChatID(chatID)]
	return ok
}

// Add allows chatID. It reports false when the chat was already allowed.
func (al *AllowList) Add(ctx context.Context, chatID, addedBy string) (bool, error) {
	id := normalizeChatID(chatID)
	if id == "" {
		return false, fmt.Errorf("empty chat ID")
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	if _, ok := al.entries[id]; ok {
		return false, nil
	}

	e := Entry{ChatID: id, AddedBy: addedBy, AddedAt: time.Now()}
	if al.store != nil {
		if err := al.store.Put(ctx, e); err != nil {
			return false, fmt.Errorf("persist allow-list entry: %w", err)
		}
	}
	al.entries[id] = e

	al.logger.Info("chat allowed", "chat_id", id, "by", addedBy)
	return true, nil
}

// Remove disallows chatID. It reports false when the chat was not listed.
func (al *AllowList) Remove(ctx context.Context, chatID string) (bool, error) {
	id := normalizeChatID(chatID)

	al.mu.Lock()
	defer al.mu.Unlock()

	if _, ok := al.entries[id]; !ok {
		return false, nil
	}
	if al.store != nil {
		if err := al.store.Delete(ctx, id); err != nil {
			return false, fmt.Errorf("delete allow-list entry: %w", err)
		}
	}
	delete(al.entries, id)

	al.logger.Info("chat disallowed", "chat_id", id)
	return true, nil
}

// List returns all entries ordered by chat ID.
func (al *AllowList) List() []Entry {
	al.mu.RLock()
	defer al.mu.RUnlock()

	out := make([]Entry, 0, len(al.entries))
	for _, e := range al.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out
}

// Len returns the number of allowed chats.
func (al *AllowList) Len() int {
	al.mu.RLock()
	defer al.mu.RUnlock()
	return len(al.entries)
}

// ParseIDs splits a comma-separated ID list, trimming blanks.
func ParseIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if id := normalizeChatID(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// normalizeChatID trims whitespace. IDs are otherwise compared verbatim
// since Discord channel IDs are bare digits.
func normalizeChatID(id string) string {
	return strings.TrimSpace(id)
}
