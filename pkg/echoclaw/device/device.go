// Package device defines the phone-data capability the assistant can query
// (contacts, files, calendar, location) and the payload shapes it returns.
package device

import "context"

// Contact is an address book entry.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// File is a file match on the device.
type File struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size,omitempty"`
}

// Event is a calendar entry.
type Event struct {
	Title    string `json:"title"`
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
	Location string `json:"location,omitempty"`
}

// Location is a geographic position.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Capability is the device access surface. Implementations may return
// empty data; callers must not special-case that.
type Capability interface {
	Contacts(ctx context.Context) ([]Contact, error)
	SearchFiles(ctx context.Context, query string) ([]File, error)
	ReadFile(ctx context.Context, path string) (string, error)
	Location(ctx context.Context) (Location, error)
	CalendarEvents(ctx context.Context) ([]Event, error)
}

// Noop is the default Capability. Every call succeeds with empty or zeroed
// data.
type Noop struct{}

var _ Capability = Noop{}

func (Noop) Contacts(context.Context) ([]Contact, error) { return []Contact{}, nil }
func (Noop) SearchFiles(context.Context, string) ([]File, error) { return []File{}, nil }
func (Noop) ReadFile(context.Context, string) (string, error) { return "", nil }
func (Noop) Location(context.Context) (Location, error) { return Location{}, nil }
func (Noop) CalendarEvents(context.Context) ([]Event, error) { return []Event{}, nil }
