package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// uniqueViolation は PostgreSQL の一意制約違反の SQLSTATE。
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// whereBuilder は $n プレースホルダ付きの WHERE 句を組み立てる。
type whereBuilder struct {
	conditions []string
	args       []interface{}
}

func (w *whereBuilder) add(format string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conditions = append(w.conditions, fmt.Sprintf(format, len(w.args)))
}

func (w *whereBuilder) clause() string {
	if len(w.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conditions, " AND ")
}

// limit は LIMIT/OFFSET 句と引数を返す。pageSize が 0 以下の場合は全件。
func (w *whereBuilder) limit(page, pageSize int) (string, []interface{}) {
	if pageSize <= 0 {
		return "", w.args
	}
	if page < 1 {
		page = 1
	}
	n := len(w.args)
	args := append(append([]interface{}{}, w.args...), pageSize, (page-1)*pageSize)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2), args
}

// nullableJSON は v を JSON にする。isNil の場合は型なしの nil (NULL) を返す。
func nullableJSON(v interface{}, isNil bool) (interface{}, error) {
	if isNil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal json column: %w", err)
	}
	return b, nil
}

func unmarshalJSON(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal json column: %w", err)
	}
	return nil
}
