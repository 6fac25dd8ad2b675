package domain

import (
	"sort"
	"strings"
)

func RosterKey(userIDs []string) string {
	ids := make([]string, len(userIDs))
	copy(ids, userIDs)
	sort.Strings(ids)
	return strings.Join(ids, ",")
}
