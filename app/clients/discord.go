package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"GoEvolveAI/app/iteration"
	"GoEvolveAI/app/logging"
	"GoEvolveAI/app/storage"
)

var _ Interface = &DiscordClient{}

const discordUsage = "Usage: !idea <what the program should do next> | !history"

type DiscordClient struct {
	Client
	session   *discordgo.Session
	channelID string
	send      func(channelID, content string) error
}

func NewDiscordClient(token, channelID string) (*DiscordClient, error) {
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	dc := &DiscordClient{
		session:   session,
		channelID: channelID,
	}
	dc.send = dc.sendWithSession

	session.AddHandler(dc.onMessageCreate)
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	return dc, nil
}

func NewDiscordClientFromConfig(cfg map[string]string) (*DiscordClient, error) {
	return NewDiscordClient(cfg["token"], cfg["channel_id"])
}

func (c *DiscordClient) Subscribe(program Program) error {
	c.program = program
	return c.Open()
}

func (c *DiscordClient) Open() error {
	if err := c.session.Open(); err != nil {
		return err
	}
	logging.Log("Discord client started. Listening for messages...", slog.LevelInfo)
	return nil
}

func (c *DiscordClient) Close() error {
	return c.session.Close()
}

func (c *DiscordClient) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || (s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}
	reply := c.handleCommand(context.Background(), m.Author.ID, m.Content)
	if reply == "" {
		return
	}
	if err := c.send(m.ChannelID, reply); err != nil {
		logging.Log("⚠️ Error replying on discord", slog.LevelWarn, "error", err)
	}
}

// handleCommand runs one chat command and returns the reply, empty for
// messages that are not commands.
func (c *DiscordClient) handleCommand(ctx context.Context, authorID, content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "!") {
		return ""
	}
	cmd, rest, _ := strings.Cut(content, " ")
	switch cmd {
	case "!idea":
		input, err := c.program.SubmitInput(ctx, "discord:"+authorID, rest)
		if errors.Is(err, iteration.ErrInvalidInput) {
			return fmt.Sprintf("❌ %v\n%s", err, discordUsage)
		}
		if err != nil {
			logging.Log("❌ Error saving discord idea", slog.LevelError, "error", err)
			return "❌ Could not save your idea, try again later."
		}
		return fmt.Sprintf("📝 Idea #%d saved. It will be considered in the next iteration.", input.ID)
	case "!history":
		tree, err := c.program.History(ctx)
		if err != nil {
			logging.Log("❌ Error rendering history", slog.LevelError, "error", err)
			return "❌ Could not load the history."
		}
		return "```\n" + tree + "```"
	case "!help":
		return discordUsage
	default:
		return ""
	}
}

func (c *DiscordClient) IterationPublished(_ context.Context, artifact storage.Artifact) {
	if c.channelID == "" {
		return
	}
	msg := fmt.Sprintf("🚀 Iteration #%d is live", artifact.ID)
	if title := iteration.Describe(artifact.Code).Title; title != "" {
		msg += ": " + title
	}
	if err := c.send(c.channelID, msg); err != nil {
		logging.Log("⚠️ Error announcing iteration", slog.LevelWarn, "iteration", artifact.ID, "error", err)
	}
}

func (c *DiscordClient) sendWithSession(channelID, content string) error {
	if channelID == "" {
		return fmt.Errorf("channelID is empty")
	}
	if _, err := c.session.ChannelMessageSend(channelID, content); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
