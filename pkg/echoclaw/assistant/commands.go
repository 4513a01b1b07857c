// Package assistant – commands.go implements owner commands sent as chat
// messages. Only messages written by the owner (FromMe) reach them:
//
//	/allow [chat_id]     - Allow a chat (default: the current one)
//	/disallow [chat_id]  - Remove a chat from the allow-list
//	/groups              - List allowed chats
//	/persona             - Show persona learning status
//	/status              - Show bot status
//	/help                - Show available commands
package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/jholhewres/echoclaw/pkg/echoclaw/channels"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/persona"
)

// CommandResult contains the result of a command execution.
type CommandResult struct {
	// Response is the text to send back.
	Response string

	// Handled is true if the message was a known command.
	Handled bool
}

// HandleCommand runs an owner command. Unknown commands are not handled and
// go through normal routing.
func (a *Assistant) HandleCommand(msg *channels.IncomingMessage) CommandResult {
	content := strings.TrimSpace(msg.Content)
	if !IsCommand(content) {
		return CommandResult{}
	}

	parts := strings.Fields(content)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "/help":
		return CommandResult{Response: helpCommand(), Handled: true}
	case "/status":
		return CommandResult{Response: a.statusCommand(), Handled: true}
	case "/allow":
		return CommandResult{Response: a.allowCommand(args, msg), Handled: true}
	case "/disallow":
		return CommandResult{Response: a.disallowCommand(args, msg), Handled: true}
	case "/groups":
		return CommandResult{Response: a.groupsCommand(), Handled: true}
	case "/persona":
		return CommandResult{Response: a.personaCommand(), Handled: true}
	default:
		return CommandResult{}
	}
}

func helpCommand() string {
	var b strings.Builder
	b.WriteString("*EchoClaw Commands*\n\n")
	b.WriteString("/allow [chat_id] - Allow this chat (or the given one)\n")
	b.WriteString("/disallow [chat_id] - Remove this chat (or the given one)\n")
	b.WriteString("/groups - List allowed chats\n")
	b.WriteString("/persona - Persona learning status\n")
	b.WriteString("/status - Bot status\n")
	b.WriteString("/help - Show this message")
	return b.String()
}

func (a *Assistant) statusCommand() string {
	var b strings.Builder
	b.WriteString("*EchoClaw Status*\n\n")
	if !a.startedAt.IsZero() {
		fmt.Fprintf(&b, "Uptime: %s\n", time.Since(a.startedAt).Round(time.Second))
	}
	fmt.Fprintf(&b, "Search: %s\n", onOff(a.opts.SearchEnabled))
	fmt.Fprintf(&b, "Phone data: %s\n", onOff(a.opts.DeviceEnabled))
	fmt.Fprintf(&b, "Persona: %s (learning %s)\n", onOff(a.opts.PersonaEnabled), onOff(a.opts.LearningMode))
	fmt.Fprintf(&b, "Group restriction: %s (%d allowed)\n", onOff(a.opts.GroupRestriction), a.allow.Len())

	health := a.channelMgr.HealthAll()
	for _, name := range a.channelMgr.Names() {
		h := health[name]
		status := "disconnected"
		if h.Connected {
			status = "connected"
		}
		fmt.Fprintf(&b, "Channel %s: %s (errors: %d)\n", name, status, h.ErrorCount)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Assistant) allowCommand(args []string, msg *channels.IncomingMessage) string {
	chatID := targetChat(args, msg)
	added, err := a.allow.Add(a.ctx, chatID, msg.From)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if !added {
		return fmt.Sprintf("Chat %s is already allowed.", chatID)
	}
	return fmt.Sprintf("Chat %s is now allowed.", chatID)
}

func (a *Assistant) disallowCommand(args []string, msg *channels.IncomingMessage) string {
	chatID := targetChat(args, msg)
	removed, err := a.allow.Remove(a.ctx, chatID)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if !removed {
		return fmt.Sprintf("Chat %s was not allowed.", chatID)
	}
	return fmt.Sprintf("Chat %s removed from the allow-list.", chatID)
}

func (a *Assistant) groupsCommand() string {
	entries := a.allow.List()
	if len(entries) == 0 {
		return "No allowed chats."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Allowed chats (%d)*\n", len(entries))
	for _, e := range entries {
		b.WriteString("- ")
		b.WriteString(e.ChatID)
		if e.AddedBy != "" {
			fmt.Fprintf(&b, " (added by %s)", e.AddedBy)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Assistant) personaCommand() string {
	if a.persona == nil {
		return "Persona profile is not available."
	}
	n := a.persona.SampleCount()
	state := "collecting"
	if a.persona.Eligible() {
		state = "ready"
	}
	return fmt.Sprintf("Persona: %s\nLearning: %s\nStyle samples: %d/%d (%s, %d needed)",
		onOff(a.opts.PersonaEnabled), onOff(a.opts.LearningMode),
		n, persona.MaxStyleSamples, state, persona.MinSamplesForPersona)
}

// targetChat is the first argument, or the chat the command was sent in.
func targetChat(args []string, msg *channels.IncomingMessage) string {
	if len(args) > 0 {
		return args[0]
	}
	return msg.ChatID
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
