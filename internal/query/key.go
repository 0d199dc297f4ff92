package query

import (
	"sort"
	"strings"

	"github.com/yourorg/timetrack/internal/domain"
)

// Key identifies a cached query result. Keys are deterministic: two
// calls with structurally equal filters produce the same key no matter
// how the filter map was built.
type Key string

// Entity returns the entity namespace portion of the key, used for
// invalidation on mutation.
func (k Key) Entity() string {
	s := string(k)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return s[:i]
	}
	return s
}

// KeyFor builds a key from the (entityName, operationKind, filter)
// tuple. Filter fields are sorted so field order is insignificant.
func KeyFor(entity, op string, filter domain.Filter) Key {
	var b strings.Builder
	b.WriteString(entity)
	b.WriteByte('/')
	b.WriteString(op)

	if len(filter) > 0 {
		fields := make([]string, 0, len(filter))
		for f := range filter {
			fields = append(fields, f)
		}
		sort.Strings(fields)

		b.WriteByte('?')
		for i, f := range fields {
			if i > 0 {
				b.WriteByte('&')
			}
			b.WriteString(f)
			b.WriteByte('=')
			b.WriteString(filter[f])
		}
	}
	return Key(b.String())
}

// EntityPrefix returns the invalidation prefix covering every key in an
// entity namespace.
func EntityPrefix(entity string) string {
	return entity + "/"
}
