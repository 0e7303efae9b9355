package graph

import (
	"context"
	"errors"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

var (
	// ErrTransient временная ошибка хранилища, операцию можно повторить
	ErrTransient = errors.New("временная ошибка хранилища")

	// ErrNoConstraint запись в метку без объявленного ограничения уникальности
	ErrNoConstraint = errors.New("ограничение уникальности не объявлено")

	// ErrInvalidIdentifier недопустимое имя метки, свойства или типа связи
	ErrInvalidIdentifier = errors.New("недопустимый идентификатор")
)

// IsTransient сообщает, что пакет можно повторить: конфликт записи,
// недоступность сервера или истекший тайм-аут
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return neo4j.IsRetryable(err) || neo4j.IsConnectivityError(err)
}

// IsConstraintExists сообщает, что ограничение уже объявлено
func IsConstraintExists(err error) bool {
	var nerr *neo4j.Neo4jError
	if !errors.As(err, &nerr) {
		return false
	}
	return strings.HasSuffix(nerr.Code, "EquivalentSchemaRuleAlreadyExists") ||
		strings.HasSuffix(nerr.Code, "ConstraintAlreadyExists")
}
