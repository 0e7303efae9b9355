package transform

import (
	"github.com/LilVoxy/budget_graph/ETL/models"
	"github.com/LilVoxy/budget_graph/ETL/schema"
)

// DimensionNode преобразует запись измерения в элемент upsert:
// ключ узла и все атрибуты записи, включая собранные ключевые свойства
func DimensionNode(desc schema.Descriptor, rec models.DimensionRecord) models.NodeItem {
	key := make(map[string]any, len(rec.Key))
	props := make(map[string]any, len(rec.Attributes)+len(rec.Key))
	for k, v := range rec.Attributes {
		props[k] = v
	}
	for _, f := range desc.KeyFields() {
		key[f] = rec.Key[f]
		props[f] = rec.Key[f]
	}
	return models.NodeItem{Key: key, Properties: props}
}

// FactNode преобразует строку бюджета в элемент upsert.
// Исходные коды внешних ключей сохраняются как свойства узла
func FactNode(desc schema.Descriptor, fact models.FactRecord) models.NodeItem {
	keyField := desc.KeyFields()[0]
	props := make(map[string]any, len(fact.Attributes)+10)
	for k, v := range fact.Attributes {
		props[k] = v
	}
	props[keyField] = fact.ID
	props["budget_type"] = string(fact.BudgetType)
	props["fiscal_year"] = fact.FiscalYear
	props["amount"] = fact.Amount
	props["description"] = fact.Description
	for _, link := range desc.FactLinks {
		if code := fact.ForeignKeys.Get(link.Slot); code != "" {
			props[link.Property] = code
		}
	}
	return models.NodeItem{Key: map[string]any{keyField: fact.ID}, Properties: props}
}

// DimensionNodes адаптирует поток записей измерения к потоку элементов upsert
func DimensionNodes(desc schema.Descriptor, records models.Stream[models.DimensionRecord]) models.Stream[models.NodeItem] {
	return models.MapStream(records, func(rec models.DimensionRecord) (models.NodeItem, error) {
		return DimensionNode(desc, rec), nil
	})
}

// FactNodes адаптирует поток строк бюджета к потоку элементов upsert.
// onFact вызывается для каждой строки (учет сумм)
func FactNodes(desc schema.Descriptor, facts models.Stream[models.FactRecord], onFact func(models.FactRecord)) models.Stream[models.NodeItem] {
	return models.MapStream(facts, func(f models.FactRecord) (models.NodeItem, error) {
		if onFact != nil {
			onFact(f)
		}
		return FactNode(desc, f), nil
	})
}
