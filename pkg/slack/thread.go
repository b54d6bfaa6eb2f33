package slack

import (
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	goslack "github.com/slack-go/slack"
)

// threadWindow is how far back a session thread is looked up, both in the
// local index and in channel history.
const threadWindow = 24 * time.Hour

var spaceRun = regexp.MustCompile(`\s+`)

// SessionMarker is the text every notification about a chat session
// carries, so later notifications can thread onto the first one.
func SessionMarker(sessionID string) string {
	return "session " + sessionID
}

// threadIndex remembers the thread timestamp of sessions this process has
// already posted about. Misses fall back to a channel history scan, which
// also covers threads started by another replica or before a restart.
type threadIndex struct {
	cache *expirable.LRU[string, string]
}

func newThreadIndex(size int) *threadIndex {
	return &threadIndex{cache: expirable.NewLRU[string, string](size, nil, threadWindow)}
}

func (ix *threadIndex) get(sessionID string) (string, bool) {
	return ix.cache.Get(sessionID)
}

func (ix *threadIndex) remember(sessionID, ts string) {
	if sessionID == "" || ts == "" {
		return
	}
	ix.cache.Add(sessionID, ts)
}

func foldText(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(strings.ToLower(s), " "))
}

// messageText flattens the searchable text of a message: the top-level
// text, attachment bodies and section blocks.
func messageText(msg goslack.Message) string {
	var b strings.Builder
	add := func(s string) {
		if s == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	add(msg.Text)
	for _, att := range msg.Attachments {
		add(att.Text)
		add(att.Fallback)
	}
	for _, block := range msg.Blocks.BlockSet {
		if section, ok := block.(*goslack.SectionBlock); ok && section.Text != nil {
			add(section.Text.Text)
		}
	}
	return b.String()
}

// isThreadRoot reports whether msg is top-level rather than a reply.
func isThreadRoot(msg goslack.Message) bool {
	return msg.ThreadTimestamp == "" || msg.ThreadTimestamp == msg.Timestamp
}
