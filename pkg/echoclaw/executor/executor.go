// Package executor fetches the context an Action needs: search results for
// a search, device data for a device query.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jholhewres/echoclaw/pkg/echoclaw/device"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/intent"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/search"
)

// Result carries the context gathered for an action. Only the field that
// matches the action's kind is set.
type Result struct {
	Search []search.Result
	Device device.Data
}

// Executor runs actions against the search provider and device capability.
type Executor struct {
	search     search.Provider
	device     device.Capability
	maxResults int
	logger     *slog.Logger
}

// New creates an executor. A nil capability is replaced by device.Noop.
func New(provider search.Provider, capability device.Capability, maxResults int, logger *slog.Logger) *Executor {
	if capability == nil {
		capability = device.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		search:     provider,
		device:     capability,
		maxResults: maxResults,
		logger:     logger.With("component", "executor"),
	}
}

// Execute gathers context for a. It never fails: provider errors degrade to
// empty search results or a device error marker.
func (e *Executor) Execute(ctx context.Context, a intent.Action) Result {
	switch a.Kind {
	case intent.KindSearch:
		return Result{Search: e.runSearch(ctx, a.Query)}
	case intent.KindDevice:
		return Result{Device: e.runDevice(ctx, a.Resource, a.Query)}
	default:
		return Result{}
	}
}

func (e *Executor) runSearch(ctx context.Context, query string) []search.Result {
	if e.search == nil || e.maxResults <= 0 {
		return []search.Result{}
	}

	results, err := e.search.Search(ctx, query)
	if err != nil {
		e.logger.Error("search failed", "provider", e.search.Name(), "query", query, "error", err)
		return []search.Result{}
	}
	return search.Head(results, e.maxResults)
}

func (e *Executor) runDevice(ctx context.Context, kind intent.ResourceKind, query string) (data device.Data) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("device capability panicked", "kind", kind, "panic", r)
			data = device.ErrorData(fmt.Sprint(r))
		}
	}()

	var err error
	switch kind {
	case intent.ResourceContacts:
		var contacts []device.Contact
		if contacts, err = e.device.Contacts(ctx); err == nil {
			data = device.ListData(contacts)
		}
	case intent.ResourceFiles:
		var files []device.File
		if files, err = e.device.SearchFiles(ctx, query); err == nil {
			data = device.ListData(files)
		}
	case intent.ResourceCalendar:
		var events []device.Event
		if events, err = e.device.CalendarEvents(ctx); err == nil {
			data = device.ListData(events)
		}
	case intent.ResourceLocation:
		var loc device.Location
		if loc, err = e.device.Location(ctx); err == nil {
			data = device.RecordData(loc)
		}
	default:
		return device.ErrorData(fmt.Sprintf("Unknown phone data type: %s", kind))
	}

	if err != nil {
		e.logger.Error("device query failed", "kind", kind, "error", err)
		return device.ErrorData(err.Error())
	}
	return data
}
