package service

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
	// AnonymousActor is recorded when a caller does not identify itself.
	AnonymousActor = "anonymous"
)

var newID = func() string { return uuid.NewString() }

func actorOrDefault(actor string) string {
	if a := strings.TrimSpace(actor); a != "" {
		return a
	}
	return AnonymousActor
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func trimmedOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return strings.TrimSpace(*s)
}
