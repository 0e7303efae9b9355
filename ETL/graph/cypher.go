package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/LilVoxy/budget_graph/ETL/schema"
)

// quote экранирует идентификатор обратными кавычками после проверки
func quote(id string) (string, error) {
	if !schema.ValidIdentifier(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return "`" + id + "`", nil
}

func quoteAll(ids []string) ([]string, error) {
	out := make([]string, len(ids))
	for i, id := range ids {
		q, err := quote(id)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

// constraintName имя ограничения: <label>_<field>_unique
func constraintName(label string, keyFields []string) string {
	return strings.ToLower(label) + "_" + strings.Join(keyFields, "_") + "_unique"
}

// constraintQuery CREATE CONSTRAINT ... IF NOT EXISTS для одного или составного ключа
func constraintQuery(label string, keyFields []string) (string, error) {
	if len(keyFields) == 0 {
		return "", fmt.Errorf("метка %s: пустой ключ", label)
	}
	l, err := quote(label)
	if err != nil {
		return "", err
	}
	fields, err := quoteAll(keyFields)
	if err != nil {
		return "", err
	}

	props := make([]string, len(fields))
	for i, f := range fields {
		props[i] = "n." + f
	}
	target := props[0]
	if len(props) > 1 {
		target = "(" + strings.Join(props, ", ") + ")"
	}

	return fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE %s IS UNIQUE",
		constraintName(label, keyFields), l, target), nil
}

// keyPattern собирает шаблон {k: row.<param>.k, ...}
func keyPattern(param string, keyFields []string) (string, error) {
	fields, err := quoteAll(keyFields)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s: row.%s.%s", f, param, f)
	}
	return "{" + strings.Join(parts, ", ") + "}", nil
}

// nodeUpsertQuery MERGE по бизнес-ключу и перезапись атрибутов
func nodeUpsertQuery(label string, keyFields []string) (string, error) {
	l, err := quote(label)
	if err != nil {
		return "", err
	}
	pattern, err := keyPattern("key", keyFields)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`UNWIND $rows AS row
MERGE (n:%s %s)
SET n += row.props
RETURN row.idx AS idx`, l, pattern), nil
}

// edgeUpsertQuery находит оба конца по ключам и создает связь, если ее нет.
// Строки с ненайденным концом отсеиваются MATCH и не возвращают idx
func edgeUpsertQuery(edgeType, fromLabel string, fromKeys []string, toLabel string, toKeys []string) (string, error) {
	t, err := quote(edgeType)
	if err != nil {
		return "", err
	}
	fl, err := quote(fromLabel)
	if err != nil {
		return "", err
	}
	tl, err := quote(toLabel)
	if err != nil {
		return "", err
	}
	fromPattern, err := keyPattern("from", fromKeys)
	if err != nil {
		return "", err
	}
	toPattern, err := keyPattern("to", toKeys)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`UNWIND $rows AS row
MATCH (a:%s %s)
MATCH (b:%s %s)
MERGE (a)-[:%s]->(b)
RETURN row.idx AS idx`, fl, fromPattern, tl, toPattern, t), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
