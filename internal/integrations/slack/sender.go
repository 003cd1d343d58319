// Package slack formats conversation summaries as Slack messages and posts them.
package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
)

const maxListed = 5

// Digest is the content of one summary message.
type Digest struct {
	Title       string
	Summary     string
	Topics      []string
	Sentiment   string
	Decisions   []string
	ActionItems []string
}

// FormatSummary renders d as Slack mrkdwn.
func FormatSummary(d Digest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Conversation ended:* %s\n", d.Title)
	if d.Summary != "" {
		fmt.Fprintf(&b, "%s\n", d.Summary)
	}
	if len(d.Topics) > 0 {
		fmt.Fprintf(&b, "*Topics:* %s\n", strings.Join(d.Topics, ", "))
	}
	if d.Sentiment != "" {
		fmt.Fprintf(&b, "*Sentiment:* %s\n", d.Sentiment)
	}
	writeList(&b, "Decisions", d.Decisions)
	writeList(&b, "Action items", d.ActionItems)
	return strings.TrimRight(b.String(), "\n")
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "*%s:*\n", heading)
	for i, item := range items {
		if i == maxListed {
			break
		}
		fmt.Fprintf(b, "• %s\n", item)
	}
}

// SendMessageToChannel posts text to a channel. A non-empty threadTs posts it as a thread reply.
// It returns the timestamp of the posted message.
func SendMessageToChannel(ctx context.Context, client *slack.Client, channelID, text, threadTs string) (string, error) {
	if channelID == "" {
		return "", fmt.Errorf("SendMessageToChannel: channel ID is required")
	}

	msgOptions := []slack.MsgOption{
		slack.MsgOptionText(text, false),
	}
	if threadTs != "" {
		msgOptions = append(msgOptions, slack.MsgOptionTS(threadTs))
	}

	_, ts, err := client.PostMessageContext(ctx, channelID, msgOptions...)
	if err != nil {
		return "", fmt.Errorf("failed to post message to Slack channel %s: %w", channelID, err)
	}
	return ts, nil
}
