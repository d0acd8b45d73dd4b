package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"relay/internal/messenger"
)

// maxButtonsPerRow is Discord's limit for one action row.
const maxButtonsPerRow = 5

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"~", `\~`,
	"`", "\\`",
	"|", `\|`,
	">", `\>`,
)

func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

func buttonStyle(s messenger.ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case messenger.StyleSuccess:
		return discordgo.SuccessButton
	case messenger.StyleDanger:
		return discordgo.DangerButton
	case messenger.StyleSecondary:
		return discordgo.SecondaryButton
	default:
		return discordgo.PrimaryButton
	}
}

// toComponents lays buttons out in action rows of at most five.
func toComponents(buttons []messenger.Button) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return []discordgo.MessageComponent{}
	}
	var rows []discordgo.MessageComponent
	for start := 0; start < len(buttons); start += maxButtonsPerRow {
		end := min(start+maxButtonsPerRow, len(buttons))
		row := discordgo.ActionsRow{}
		for _, b := range buttons[start:end] {
			row.Components = append(row.Components, discordgo.Button{
				Label:    b.Label,
				Style:    buttonStyle(b.Style),
				CustomID: b.Payload,
			})
		}
		rows = append(rows, row)
	}
	return rows
}

// copyContent renders a message's text plus one line per attachment URL.
func copyContent(m *discordgo.Message) string {
	parts := make([]string, 0, 1+len(m.Attachments))
	if text := strings.TrimSpace(m.Content); text != "" {
		parts = append(parts, text)
	}
	for _, a := range m.Attachments {
		if a != nil && a.URL != "" {
			parts = append(parts, a.URL)
		}
	}
	return strings.Join(parts, "\n")
}

func appendNote(content, note string) string {
	if note == "" {
		return content
	}
	if content == "" {
		return note
	}
	return content + "\n\n" + note
}

func displayName(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// fromMessage converts a direct message into an Event. Messages from bots,
// from the relay itself and from guild channels are dropped.
func fromMessage(m *discordgo.Message, selfID string) (messenger.Event, bool) {
	if m == nil || m.Author == nil || m.Author.Bot || m.Author.ID == selfID || m.GuildID != "" {
		return messenger.Event{}, false
	}
	ev := messenger.Event{
		ID:          m.ID,
		UserID:      m.Author.ID,
		DisplayName: displayName(m.Author),
		Content:     messenger.ContentRef{ChannelID: m.ChannelID, MessageID: m.ID},
		Text:        m.Content,
	}
	switch {
	case len(m.Attachments) > 0 || strings.TrimSpace(m.Content) == "":
		ev.Kind = messenger.KindContent
	default:
		if name, _, ok := messenger.ParseCommand(m.Content); ok {
			ev.Kind = messenger.KindCommand
			ev.Command = name
		} else {
			ev.Kind = messenger.KindText
		}
	}
	return ev, true
}

func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// fromInteraction converts a button press into an Event.
func fromInteraction(i *discordgo.Interaction) (messenger.Event, bool) {
	if i == nil || i.Type != discordgo.InteractionMessageComponent {
		return messenger.Event{}, false
	}
	u := interactionUser(i)
	if u == nil {
		return messenger.Event{}, false
	}
	cb := messenger.Callback{
		ID:          i.ID,
		Token:       i.Token,
		UserID:      u.ID,
		DisplayName: displayName(u),
		Payload:     i.MessageComponentData().CustomID,
	}
	if i.Message != nil {
		cb.Message = messenger.Handle{ChannelID: i.Message.ChannelID, MessageID: i.Message.ID}
	}
	return messenger.Event{
		ID:          i.ID,
		Kind:        messenger.KindCallback,
		UserID:      u.ID,
		DisplayName: cb.DisplayName,
		Callback:    cb,
	}, true
}
