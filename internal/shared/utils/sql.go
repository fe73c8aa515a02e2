package utils

import (
	"fmt"
	"strings"
)

// JoinWithAnd joins a slice of strings with AND operator
func JoinWithAnd(clauses []string) string {
	return strings.Join(clauses, " AND ")
}

// JoinWithOr joins a slice of strings with OR operator
func JoinWithOr(clauses []string) string {
	return strings.Join(clauses, " OR ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escape các ký tự đặc biệt của LIKE/ILIKE (backslash là escape mặc định)
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ContainsPattern trả về "%s%" đã escape, dùng cho ILIKE substring match
func ContainsPattern(s string) string {
	return "%" + EscapeLike(s) + "%"
}

// Args gom positional arguments cho query build động.
// Add trả về placeholder "$n" tương ứng.
type Args struct {
	values []any
}

func (a *Args) Add(v any) string {
	a.values = append(a.values, v)
	return fmt.Sprintf("$%d", len(a.values))
}

func (a *Args) Values() []any {
	return a.values
}

func (a *Args) Len() int {
	return len(a.values)
}
