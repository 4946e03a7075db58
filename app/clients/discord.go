package clients

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"
)

const discordMessageLimit = 2000

var _ Interface = &DiscordClient{}

// DiscordClient posts run summaries to a channel. The session is opened on
// the first message.
type DiscordClient struct {
	session   *discordgo.Session
	channelID string
	onlyFail  bool

	openOnce sync.Once
	openErr  error
}

func NewDiscordClientFromConfig(cfg map[string]string) (*DiscordClient, error) {
	token := cfg["token"]
	if token == "" {
		return nil, fmt.Errorf("discord: token is required")
	}
	channelID := cfg["channel_id"]
	if channelID == "" {
		return nil, fmt.Errorf("discord: channel_id is required")
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages

	return &DiscordClient{
		session:   session,
		channelID: channelID,
		onlyFail:  cfg["only_failures"] == "true",
	}, nil
}

func (c *DiscordClient) open() error {
	c.openOnce.Do(func() {
		if c.openErr = c.session.Open(); c.openErr == nil {
			log.Println("Discord client connected.")
		}
	})
	return c.openErr
}

func (c *DiscordClient) Notify(_ context.Context, report Report) error {
	if c.onlyFail && report.Failed == 0 {
		return nil
	}
	if err := c.open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	return c.SendMessage(c.channelID, formatReport(report))
}

func (c *DiscordClient) SendMessage(channelID, content string) error {
	if channelID == "" {
		return fmt.Errorf("channelID is empty")
	}
	if _, err := c.session.ChannelMessageSend(channelID, content); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (c *DiscordClient) Close() error {
	return c.session.Close()
}

func formatReport(report Report) string {
	icon := "✅"
	if report.Failed > 0 {
		icon = "⚠️"
	}
	msg := icon + " " + report.String()
	if runes := []rune(msg); len(runes) > discordMessageLimit {
		msg = string(runes[:discordMessageLimit-3]) + "..."
	}
	return msg
}
