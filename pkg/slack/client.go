package slack

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goslack "github.com/slack-go/slack"
)

// historyPageSize bounds one conversations.history page; historyMaxPages
// bounds how far back FindThread scans.
const (
	historyPageSize = 100
	historyMaxPages = 3
)

// Post is one chat.postMessage call.
type Post struct {
	// Text is the notification fallback shown by clients that cannot
	// render blocks.
	Text   string
	Blocks []goslack.Block
	// ThreadTS makes the post a threaded reply when set.
	ThreadTS string
}

// Client posts to and searches one Slack channel.
type Client struct {
	api       *goslack.Client
	channelID string
	now       func() time.Time
}

// NewClient creates a client for channelID.
func NewClient(token, channelID string, opts ...goslack.Option) *Client {
	return &Client{
		api:       goslack.New(token, opts...),
		channelID: channelID,
		now:       time.Now,
	}
}

// NewClientWithAPIURL creates a client against a non-default API base URL.
func NewClientWithAPIURL(token, channelID, apiURL string) *Client {
	return NewClient(token, channelID, goslack.OptionAPIURL(apiURL))
}

// PostMessage sends p and returns the timestamp of the posted message.
func (c *Client) PostMessage(ctx context.Context, p Post) (string, error) {
	opts := []goslack.MsgOption{
		goslack.MsgOptionText(p.Text, false),
		goslack.MsgOptionBlocks(p.Blocks...),
	}
	if p.ThreadTS != "" {
		opts = append(opts, goslack.MsgOptionTS(p.ThreadTS))
	}
	_, ts, err := c.api.PostMessageContext(ctx, c.channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("chat.postMessage failed: %w", err)
	}
	return ts, nil
}

// FindThread returns the timestamp of the newest top-level message posted
// within threadWindow whose text contains marker, or "" when none does.
func (c *Client) FindThread(ctx context.Context, marker string) (string, error) {
	want := foldText(marker)
	params := &goslack.GetConversationHistoryParameters{
		ChannelID: c.channelID,
		Oldest:    strconv.FormatInt(c.now().Add(-threadWindow).Unix(), 10),
		Limit:     historyPageSize,
	}
	for page := 0; page < historyMaxPages; page++ {
		history, err := c.api.GetConversationHistoryContext(ctx, params)
		if err != nil {
			return "", fmt.Errorf("conversations.history failed: %w", err)
		}
		for _, msg := range history.Messages {
			if isThreadRoot(msg) && strings.Contains(foldText(messageText(msg)), want) {
				return msg.Timestamp, nil
			}
		}
		if !history.HasMore || history.ResponseMetaData.NextCursor == "" {
			break
		}
		params.Cursor = history.ResponseMetaData.NextCursor
	}
	return "", nil
}
