package storage

import (
	"strings"

	"github.com/princekumarofficial/catalog-service/internal/types/assets"
)

// Terms splits a free text query into lower cased search terms.
func Terms(search string) []string {
	return strings.Fields(strings.ToLower(search))
}

// Ascending reports whether q asks for ascending order.
func Ascending(q assets.ListQuery) bool {
	return q.SortOrder == assets.SortAsc
}
