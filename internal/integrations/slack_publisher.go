package integrations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	slacksender "chatportal-backend/internal/integrations/slack"
)

var _ Publisher = (*SlackPublisher)(nil)

// SlackPublisher posts summaries to one Slack channel.
type SlackPublisher struct {
	client    *slack.Client
	channelID string
}

// NewSlackPublisher creates a publisher for the bot token and channel. Options are
// passed through to the Slack client (tests point slack.OptionAPIURL at a local server).
func NewSlackPublisher(botToken, channelID string, opts ...slack.Option) (*SlackPublisher, error) {
	if botToken == "" || channelID == "" {
		return nil, errors.New("slack publisher needs both a bot token and a channel ID")
	}
	return &SlackPublisher{
		client:    slack.New(botToken, opts...),
		channelID: channelID,
	}, nil
}

func (p *SlackPublisher) Name() string { return "slack" }

// Verify checks the token with auth.test and returns the workspace and bot names.
func (p *SlackPublisher) Verify(ctx context.Context) (string, error) {
	resp, err := p.client.AuthTestContext(ctx)
	if err != nil {
		errStr := err.Error()
		switch {
		case strings.Contains(errStr, "invalid_auth"):
			return "", errors.New("slack API error: invalid authentication token")
		case strings.Contains(errStr, "not_authed"):
			return "", errors.New("slack API error: not authenticated (check token scopes?)")
		}
		return "", fmt.Errorf("failed during Slack connection test (AuthTest): %w", err)
	}
	return fmt.Sprintf("workspace '%s' as bot '%s'", resp.Team, resp.User), nil
}

// Publish posts the formatted summary to the configured channel.
func (p *SlackPublisher) Publish(ctx context.Context, s Summary) error {
	text := slacksender.FormatSummary(slacksender.Digest{
		Title:       s.Title,
		Summary:     s.Summary,
		Topics:      s.Topics,
		Sentiment:   s.Sentiment,
		Decisions:   s.Decisions,
		ActionItems: s.ActionItems,
	})
	_, err := slacksender.SendMessageToChannel(ctx, p.client, p.channelID, text, "")
	return err
}
