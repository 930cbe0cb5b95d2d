package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// AllowOrderings keeps only the orderings whose field is a key of `columns`, renaming them to the mapped column.
func AllowOrderings(orderings []DBOrdering, columns map[string]string) []DBOrdering {
	allowed := make([]DBOrdering, 0, len(orderings))
	for _, ord := range orderings {
		if col, ok := columns[strings.ToLower(ord.Field)]; ok {
			allowed = append(allowed, DBOrdering{Field: col, Ascending: ord.Ascending})
		}
	}
	return allowed
}

// OrderByClause builds an SQL `ORDER BY` clause, falling back to `def` when no ordering is given.
func OrderByClause(orderings []DBOrdering, def string) string {
	if len(orderings) == 0 {
		return " ORDER BY " + def
	}
	parts := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		parts = append(parts, ord.String())
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
