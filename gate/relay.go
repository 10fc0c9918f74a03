package gate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"

	"github.com/warden-ac/warden/notify"
)

// attributionRule maps an inbound text packet to a speaker name and the
// message body. Rules are tried in order; the first match wins. Candidates
// are verified against the membership table afterwards, so no rule needs
// to care about spoofed or system-generated names itself.
type attributionRule struct {
	name  string
	match func(g *Gate, pk *packet.Text) (speaker, message string, ok bool)
}

// rawChatPattern matches the "<name> message" shape servers use for
// pre-formatted chat lines.
var rawChatPattern = regexp.MustCompile(`^<([^>]+)> (.*)$`)

var attributionRules = []attributionRule{
	{
		// Stable account id, the strongest signal the protocol offers.
		name: "xuid",
		match: func(g *Gate, pk *packet.Text) (string, string, bool) {
			if pk.XUID == "" {
				return "", "", false
			}
			for _, name := range g.membership.Keys() {
				entry, _ := g.membership.Get(name)
				if entry != nil && entry.Identity.XUID == pk.XUID {
					return name, pk.Message, true
				}
			}
			return "", "", false
		},
	},
	{
		name: "source-name",
		match: func(g *Gate, pk *packet.Text) (string, string, bool) {
			if pk.TextType != packet.TextTypeChat || pk.SourceName == "" {
				return "", "", false
			}
			return pk.SourceName, pk.Message, true
		},
	},
	{
		// Rich/structured payloads: translation chat and pre-formatted raw
		// lines both embed the speaker in the payload itself.
		name: "extracted",
		match: func(g *Gate, pk *packet.Text) (string, string, bool) {
			if pk.TextType == packet.TextTypeTranslation && pk.Message == "chat.type.text" && len(pk.Parameters) >= 2 {
				return pk.Parameters[0], pk.Parameters[1], true
			}
			if pk.TextType == packet.TextTypeRaw {
				if m := rawChatPattern.FindStringSubmatch(pk.Message); m != nil {
					return m[1], m[2], true
				}
			}
			return "", "", false
		},
	},
	{
		// Any remaining chat-shaped payload that still names its source.
		name: "generic",
		match: func(g *Gate, pk *packet.Text) (string, string, bool) {
			switch pk.TextType {
			case packet.TextTypeWhisper, packet.TextTypeAnnouncement:
			default:
				return "", "", false
			}
			if pk.SourceName == "" {
				return "", "", false
			}
			return pk.SourceName, pk.Message, true
		},
	},
}

// HandleText processes one inbound text packet: attributes it to a
// membership-verified speaker and relays it, or drops it. Messages with
// the command prefix are diverted to a command-usage notice instead of
// the chat relay.
func (g *Gate) HandleText(pk *packet.Text) {
	g.mu.Lock()
	defer g.mu.Unlock()

	speaker, message, ok := g.attribute(pk)
	if !ok {
		return
	}

	if prefix := g.conf.Admission.CommandPrefix; prefix != "" && strings.HasPrefix(message, prefix) {
		g.notifier.Notify(notify.Event{
			Title:       "Command used",
			Description: fmt.Sprintf("**%s**: `%s`", speaker, message),
			Color:       notify.ColorWarn,
			Channel:     notify.ChannelModeration,
		})
		return
	}

	g.notifier.Notify(notify.Event{
		Title:       speaker,
		Description: message,
		Channel:     notify.ChannelChat,
	})
}

// attribute resolves the speaker for a text packet, verified against the
// membership table. The gateway's own identity never attributes.
// Callers must hold g.mu.
func (g *Gate) attribute(pk *packet.Text) (string, string, bool) {
	for _, rule := range attributionRules {
		speaker, message, ok := rule.match(g, pk)
		if !ok {
			continue
		}
		if speaker == g.selfName {
			return "", "", false
		}
		if _, member := g.membership.Get(speaker); !member {
			continue
		}
		return speaker, message, true
	}
	return "", "", false
}

// RelayInboundChatText injects a message from the messaging platform into
// the game chat via a tellraw command.
func (g *Gate) RelayInboundChatText(sender, text string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	line, err := json.Marshal(fmt.Sprintf("[Discord] %s: %s", sender, text))
	if err != nil {
		return
	}
	g.sendCommand(fmt.Sprintf(`/tellraw @a {"rawtext":[{"text":%s}]}`, line))
}
