// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"example.com/progression/internal/domain"
)

// EncodeCursor serialises the cursor to a URL-safe token.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw := fmt.Sprintf("%s|%s", c.Date.UTC().Format(time.RFC3339Nano), c.ID)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses the encoded cursor token. An empty token yields a nil cursor.
func DecodeCursor(token string) (*domain.Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, domain.Validation("invalid cursor")
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, domain.Validation("invalid cursor format")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, domain.Validation("invalid cursor timestamp")
	}
	return &domain.Cursor{Date: ts, ID: parts[1]}, nil
}

// Before reports whether a workout dated date with id sorts after the cursor position
// in date desc, id desc order.
func Before(c *domain.Cursor, date time.Time, id string) bool {
	if c == nil {
		return true
	}
	if date.Equal(c.Date) {
		return id < c.ID
	}
	return date.Before(c.Date)
}
