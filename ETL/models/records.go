package models

import (
	"fmt"
	"sort"
	"strings"
)

// RecordType определяет тип входной записи (измерение или факт)
type RecordType string

// Типы записей измерений и фактов
const (
	// Источники финансирования
	RecordFundCluster     RecordType = "fund_cluster"
	RecordFinancingSource RecordType = "financing_source"
	RecordAuthorization   RecordType = "authorization"
	RecordFundCategory    RecordType = "fund_category"
	RecordFundingSource   RecordType = "funding_source"

	// Организации
	RecordDepartment         RecordType = "department"
	RecordAgency             RecordType = "agency"
	RecordOperatingUnitClass RecordType = "operating_unit_class"
	RecordOperatingUnit      RecordType = "operating_unit"
	RecordOrganization       RecordType = "organization"

	// Территории (PSGC)
	RecordRegion           RecordType = "region"
	RecordProvince         RecordType = "province"
	RecordCityMunicipality RecordType = "city_municipality"
	RecordBarangay         RecordType = "barangay"

	// Программы (PAP/PREXC)
	RecordSectorOutcome     RecordType = "sector_outcome"
	RecordHorizontalProgram RecordType = "horizontal_program"

	// Классификация расходов (object code)
	RecordClassification RecordType = "classification"
	RecordSubClass       RecordType = "sub_class"
	RecordExpenseGroup   RecordType = "expense_group"
	RecordExpenseObject  RecordType = "expense_object"
	RecordSubObject      RecordType = "sub_object"

	// Факты бюджета
	RecordBudget RecordType = "budget_record"
)

// DimensionRecord представляет нормализованную запись справочника
type DimensionRecord struct {
	Type RecordType

	// Бизнес-ключ: свойство узла -> значение
	Key map[string]string

	// Поля записи, на которые ссылаются связи с родителями.
	// Пустое значение означает отсутствие родителя
	ParentRefs map[string]string

	// Все скалярные атрибуты записи (включая ключевые поля)
	Attributes map[string]any
}

// BudgetType вариант бюджета: проект (NEP) или утвержденный (GAA)
type BudgetType string

const (
	BudgetNEP BudgetType = "NEP"
	BudgetGAA BudgetType = "GAA"
)

// ParseBudgetType разбирает тип бюджета без учета регистра
func ParseBudgetType(s string) (BudgetType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(BudgetNEP):
		return BudgetNEP, nil
	case string(BudgetGAA):
		return BudgetGAA, nil
	}
	return "", fmt.Errorf("неизвестный тип бюджета %q", s)
}

// Слоты внешних ключей факта
const (
	SlotOrganization  = "organization"
	SlotRegion        = "region"
	SlotFundingSource = "funding_source"
	SlotSubObject     = "sub_object"
)

// ForeignKeys содержит внешние ключи факта. Пустая строка означает отсутствие ключа
type ForeignKeys struct {
	Organization  string
	Region        string
	FundingSource string
	SubObject     string
}

// Get возвращает значение внешнего ключа по имени слота
func (fk ForeignKeys) Get(slot string) string {
	switch slot {
	case SlotOrganization:
		return fk.Organization
	case SlotRegion:
		return fk.Region
	case SlotFundingSource:
		return fk.FundingSource
	case SlotSubObject:
		return fk.SubObject
	}
	return ""
}

// FactRecord представляет строку бюджета (факт)
type FactRecord struct {
	ID          string
	BudgetType  BudgetType
	FiscalYear  string
	Amount      float64
	Description string
	ForeignKeys ForeignKeys

	// Прочие поля исходной записи (prexc_fpap_id, funding_conversion_type и т.п.)
	Attributes map[string]any
}

// NodeItem элемент пакетного upsert узлов
type NodeItem struct {
	Key        map[string]any
	Properties map[string]any
}

// KeyString возвращает детерминированное строковое представление ключа
func (n NodeItem) KeyString() string {
	return CanonicalKey(n.Key)
}

// EdgeSpec описывает тип связи и метки ее концов
type EdgeSpec struct {
	Type      string
	FromLabel string
	ToLabel   string
}

func (s EdgeSpec) String() string {
	return fmt.Sprintf("(%s)-[:%s]->(%s)", s.FromLabel, s.Type, s.ToLabel)
}

// Edge направленная типизированная связь между узлами, заданными бизнес-ключами
type Edge struct {
	Spec EdgeSpec
	From map[string]string
	To   map[string]string
}

// Triple возвращает ключ (источник, тип, цель) для дедупликации
func (e Edge) Triple() string {
	return e.Spec.String() + "|" + CanonicalKey(e.From) + "|" + CanonicalKey(e.To)
}

// CanonicalKey возвращает ключ в виде "k1=v1,k2=v2" с сортировкой по именам
func CanonicalKey[V any](m map[string]V) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%v", k, m[k])
	}
	return b.String()
}
