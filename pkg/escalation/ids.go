package escalation

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

const ticketAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// idGenerator mints escalation ids and ticket numbers from a random source.
type idGenerator struct {
	rand io.Reader
}

// escalationID returns esc_<unixmillis>_<6 hex>.
func (g idGenerator) escalationID(now time.Time) (string, error) {
	b := make([]byte, 3)
	if _, err := io.ReadFull(g.rand, b); err != nil {
		return "", fmt.Errorf("generate escalation id: %w", err)
	}
	return fmt.Sprintf("esc_%d_%s", now.UnixMilli(), hex.EncodeToString(b)), nil
}

// ticketNumber returns TKT-<yyyymmddhhmmss>-<4 upper alnum>, UTC.
func (g idGenerator) ticketNumber(now time.Time) (string, error) {
	b := make([]byte, 4)
	if _, err := io.ReadFull(g.rand, b); err != nil {
		return "", fmt.Errorf("generate ticket number: %w", err)
	}
	suffix := make([]byte, len(b))
	for i, v := range b {
		suffix[i] = ticketAlphabet[int(v)%len(ticketAlphabet)]
	}
	return fmt.Sprintf("TKT-%s-%s", now.UTC().Format("20060102150405"), suffix), nil
}

func defaultIDGenerator() idGenerator {
	return idGenerator{rand: rand.Reader}
}
