package repository

import (
	"errors"

	"github.com/lib/pq"
)

// PostgreSQLのSQLSTATE
const (
	pqUniqueViolation           = "23505"
	pqForeignKeyViolation       = "23503"
	pqInvalidTextRepresentation = "22P02"
)

// isMalformedID はerrがUUID列に不正な文字列を渡したことによるエラーかどうかを返す。
// 不正な形式のIDに一致する行は存在しないため、呼び出し側は未検出として扱う。
func isMalformedID(err error) bool {
	return pqCode(err) == pqInvalidTextRepresentation
}

// isUniqueViolation はerrが一意制約違反かどうかを返す。
func isUniqueViolation(err error) bool {
	return pqCode(err) == pqUniqueViolation
}

// isForeignKeyViolation はerrが外部キー制約違反かどうかを返す。
func isForeignKeyViolation(err error) bool {
	return pqCode(err) == pqForeignKeyViolation
}

// violatedConstraint は制約違反を起こした制約名を返す。
func violatedConstraint(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
