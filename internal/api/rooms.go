package api

import (
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/teris-io/shortid"
)

var (
	strictPolicy  = bluemonday.StrictPolicy()
	slugStripChar = regexp.MustCompile(`[^a-z0-9\-_]`)
)

// plainText strips markup from user supplied room metadata.
func plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// roomSlug derives a room id from its display name.
func roomSlug(name string) string {
	slug := strings.ReplaceAll(strings.ToLower(name), " ", "-")
	return slugStripChar.ReplaceAllString(slug, "")
}

// allocateRoomId returns an unused id for a room called name. Names that
// slug to nothing get room-<unix>, taken ids get a -<unix> suffix.
func (s *AnonChatApp) allocateRoomId(r *http.Request, name string) (string, error) {
	ts := s.now().Unix()

	id := roomSlug(name)
	if id == "" {
		id = fmt.Sprintf("room-%d", ts)
	}

	taken, err := s.roomTaken(r, id)
	if err != nil || !taken {
		return id, err
	}

	id = fmt.Sprintf("%s-%d", id, ts)
	taken, err = s.roomTaken(r, id)
	if err != nil || !taken {
		return id, err
	}

	sid, err := shortid.Generate()
	if err != nil {
		return "", fmt.Errorf("generate short id: %w", err)
	}
	return id + "-" + strings.ToLower(sid), nil
}

func (s *AnonChatApp) roomTaken(r *http.Request, id string) (bool, error) {
	exists, err := s.db.RoomExists(r.Context(), id)
	if err != nil {
		return false, fmt.Errorf("check room id: %w", err)
	}
	return exists, nil
}
