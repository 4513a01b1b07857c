// Package intent turns an inbound message into a typed Action by asking the
// oracle to answer directly or request a web search or device lookup.
package intent

import "strings"

// Kind identifies which Action case is populated.
type Kind int

const (
	KindDirect Kind = iota
	KindSearch
	KindDevice
)

func (k Kind) String() string {
	switch k {
	case KindSearch:
		return "search"
	case KindDevice:
		return "device"
	default:
		return "direct"
	}
}

// ResourceKind names the device data a DeviceQuery asks for.
type ResourceKind string

const (
	ResourceContacts ResourceKind = "contacts"
	ResourceFiles    ResourceKind = "files"
	ResourceCalendar ResourceKind = "calendar"
	ResourceLocation ResourceKind = "location"
)

// Valid reports whether k is a known resource kind.
func (k ResourceKind) Valid() bool {
	switch k {
	case ResourceContacts, ResourceFiles, ResourceCalendar, ResourceLocation:
		return true
	}
	return false
}

// Action is the classified decision for one message. Kind selects the
// populated fields: Response for KindDirect, Query for KindSearch, Resource
// and Query for KindDevice. Raw is the oracle output it was parsed from.
type Action struct {
	Kind     Kind
	Response string
	Query    string
	Resource ResourceKind
	Raw      string
}

// Direct builds a direct-answer action.
func Direct(text string) Action {
	return Action{Kind: KindDirect, Response: text, Raw: text}
}

// Search builds a web search action.
func Search(query string) Action {
	return Action{Kind: KindSearch, Query: query}
}

// DeviceQuery builds a device lookup action.
func DeviceQuery(kind ResourceKind, query string) Action {
	return Action{Kind: KindDevice, Resource: kind, Query: query}
}

const (
	searchPrefix = "SEARCH:"
	phonePrefix  = "PHONE:"
)

// Parse reads oracle output. Prefixes are matched case-insensitively on the
// trimmed text and the first match wins; anything else is a direct answer
// carrying the output as returned.
//
//	SEARCH: <query>
//	PHONE: <kind>:<query>
func Parse(output string) Action {
	text := strings.TrimSpace(output)

	var a Action
	switch {
	case hasPrefixFold(text, searchPrefix):
		a = Search(strings.TrimSpace(text[len(searchPrefix):]))
	case hasPrefixFold(text, phonePrefix):
		rest := text[len(phonePrefix):]
		kind, query, _ := strings.Cut(rest, ":")
		a = DeviceQuery(ResourceKind(strings.ToLower(strings.TrimSpace(kind))), strings.TrimSpace(query))
	default:
		a = Direct(output)
	}
	a.Raw = output
	return a
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
