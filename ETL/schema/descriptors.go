package schema

import (
	"github.com/LilVoxy/budget_graph/ETL/models"
	"github.com/LilVoxy/budget_graph/ETL/uacs"
)

// Измерения
const (
	DimensionFunding      = "funding"
	DimensionOrganization = "organization"
	DimensionLocation     = "location"
	DimensionProgram      = "program"
	DimensionExpense      = "expense"
	DimensionBudget       = "budget"
)

// FundingDescriptors источники финансирования: fund cluster -> financing source ->
// authorization -> fund category -> funding source
func FundingDescriptors() []Descriptor {
	// Связи цепочки выводятся из записей funding source, где коды уровней лежат рядом
	return []Descriptor{
		{
			RecordType: models.RecordFundCluster, Dimension: DimensionFunding,
			Label: "FundCluster", Source: "funding_source/fund_clusters",
			Keys: []KeyBinding{Key("code")},
		},
		{
			RecordType: models.RecordFinancingSource, Dimension: DimensionFunding,
			Label: "FinancingSource", Source: "funding_source/financing_sources",
			Keys: []KeyBinding{Key("code")},
		},
		{
			RecordType: models.RecordAuthorization, Dimension: DimensionFunding,
			Label: "Authorization", Source: "funding_source/authorizations",
			Keys: []KeyBinding{Key("code")},
		},
		{
			RecordType: models.RecordFundCategory, Dimension: DimensionFunding,
			Label: "FundCategory", Source: "funding_source/fund_categories",
			Keys: []KeyBinding{Key("uacs_code")},
		},
		{
			RecordType: models.RecordFundingSource, Dimension: DimensionFunding,
			Label: "FundingSource", Source: "funding_source/funding_sources",
			Keys: []KeyBinding{Key("uacs_code")},
			ParentLinks: []ParentLink{
				{
					EdgeType:    "HAS_FUNDING_SOURCE",
					ParentLabel: "FundCategory",
					ParentKey:   []KeyBinding{Key("uacs_code")},
				},
				{
					EdgeType:    "HAS_FINANCING_SOURCE",
					ParentLabel: "FundCluster",
					ParentKey:   []KeyBinding{Composite("code", "fund_cluster_code")},
					ChildLabel:  "FinancingSource",
					ChildKey:    []KeyBinding{Composite("code", "financing_source_code")},
				},
				{
					EdgeType:    "HAS_AUTHORIZATION",
					ParentLabel: "FinancingSource",
					ParentKey:   []KeyBinding{Composite("code", "financing_source_code")},
					ChildLabel:  "Authorization",
					ChildKey:    []KeyBinding{Composite("code", "authorization_code")},
				},
				{
					EdgeType:    "HAS_FUND_CATEGORY",
					ParentLabel: "Authorization",
					ParentKey:   []KeyBinding{Composite("code", "authorization_code")},
					ChildLabel:  "FundCategory",
					ChildKey:    []KeyBinding{Composite("uacs_code", "uacs_code")},
				},
			},
		},
	}
}

// OrganizationDescriptors организации: department -> agency -> operating unit class ->
// operating unit; Organization (12-значный UACS) служит целью фактов
func OrganizationDescriptors() []Descriptor {
	return []Descriptor{
		{
			RecordType: models.RecordDepartment, Dimension: DimensionOrganization,
			Label: "Department", Source: "organization/departments",
			Keys: []KeyBinding{Key("code")},
		},
		{
			RecordType: models.RecordAgency, Dimension: DimensionOrganization,
			Label: "Agency", Source: "organization/agencies",
			Keys: []KeyBinding{Key("uacs_code")},
			ParentLinks: []ParentLink{{
				EdgeType:    "HAS_AGENCY",
				ParentLabel: "Department",
				ParentKey:   []KeyBinding{Composite("code", "department_code")},
			}},
		},
		{
			RecordType: models.RecordOperatingUnitClass, Dimension: DimensionOrganization,
			Label: "OperatingUnitClass", Source: "organization/operating_unit_classes",
			Keys: []KeyBinding{Key("code")},
		},
		{
			RecordType: models.RecordOperatingUnit, Dimension: DimensionOrganization,
			Label: "OperatingUnit", Source: "organization/operating_units",
			Keys: []KeyBinding{Key("uacs_code")},
			ParentLinks: []ParentLink{
				{
					EdgeType:    "HAS_OPERATING_UNIT",
					ParentLabel: "OperatingUnitClass",
					ParentKey:   []KeyBinding{Composite("code", "class_code")},
				},
				{
					EdgeType:    "HAS_OPERATING_UNIT_CLASS",
					ParentLabel: "Agency",
					ParentKey:   []KeyBinding{Composite("uacs_code", "department_code", "agency_code")},
					ChildLabel:  "OperatingUnitClass",
					ChildKey:    []KeyBinding{Composite("code", "class_code")},
				},
			},
		},
		{
			RecordType: models.RecordOrganization, Dimension: DimensionOrganization,
			Label: "Organization", Source: "organization/organizations",
			Keys: []KeyBinding{Key("uacs_code")},
		},
	}
}

// LocationDescriptors территории PSGC: region -> province -> city/municipality -> barangay
func LocationDescriptors() []Descriptor {
	return []Descriptor{
		{
			RecordType: models.RecordRegion, Dimension: DimensionLocation,
			Label: "Region", Source: "location/regions",
			Keys: []KeyBinding{Key("code")},
		},
		{
			RecordType: models.RecordProvince, Dimension: DimensionLocation,
			Label: "Province", Source: "location/provinces",
			Keys: []KeyBinding{Key("psgc_code")},
			ParentLinks: []ParentLink{{
				EdgeType:    "HAS_PROVINCE",
				ParentLabel: "Region",
				ParentKey:   []KeyBinding{Composite("code", "region_code")},
			}},
		},
		{
			RecordType: models.RecordCityMunicipality, Dimension: DimensionLocation,
			Label: "CityMunicipality", Source: "location/cities_municipalities",
			Keys: []KeyBinding{Key("psgc_code")},
			ParentLinks: []ParentLink{{
				EdgeType:    "HAS_CITY",
				ParentLabel: "Province",
				ParentKey:   []KeyBinding{Composite("psgc_code", "region_code", "province_code")},
			}},
		},
		{
			RecordType: models.RecordBarangay, Dimension: DimensionLocation,
			Label: "Barangay", Source: "location/barangays",
			Keys: []KeyBinding{Key("psgc_code")},
			ParentLinks: []ParentLink{{
				EdgeType:    "HAS_BARANGAY",
				ParentLabel: "CityMunicipality",
				ParentKey:   []KeyBinding{Composite("psgc_code", "region_code", "province_code", "city_code")},
			}},
		},
	}
}

// ProgramDescriptors справочники PAP/PREXC без иерархии
func ProgramDescriptors() []Descriptor {
	return []Descriptor{
		{
			RecordType: models.RecordSectorOutcome, Dimension: DimensionProgram,
			Label: "SectorOutcome", Source: "pap/sector_outcomes",
			Keys: []KeyBinding{Key("code")},
		},
		{
			RecordType: models.RecordHorizontalProgram, Dimension: DimensionProgram,
			Label: "HorizontalProgram", Source: "pap/horizontal_programs",
			Keys: []KeyBinding{Key("code")},
		},
	}
}

// ExpenseDescriptors классификация расходов: classification -> sub-class -> group ->
// object -> sub-object. Коды уровней уникальны только внутри родителя, поэтому
// ключи собираются из кодов всех уровней
func ExpenseDescriptors() []Descriptor {
	return []Descriptor{
		{
			RecordType: models.RecordClassification, Dimension: DimensionExpense,
			Label: "Classification", Source: "object_code/classifications",
			Keys: []KeyBinding{Key("code")},
		},
		{
			RecordType: models.RecordSubClass, Dimension: DimensionExpense,
			Label: "SubClass", Source: "object_code/sub_classes",
			Keys: []KeyBinding{Composite("full_code", "classification_code", "code")},
			ParentLinks: []ParentLink{{
				EdgeType:    "HAS_SUB_CLASS",
				ParentLabel: "Classification",
				ParentKey:   []KeyBinding{Composite("code", "classification_code")},
			}},
		},
		{
			RecordType: models.RecordExpenseGroup, Dimension: DimensionExpense,
			Label: "ExpenseGroup", Source: "object_code/groups",
			Keys: []KeyBinding{Composite("full_code", "classification_code", "sub_class_code", "code")},
			ParentLinks: []ParentLink{{
				EdgeType:    "HAS_GROUP",
				ParentLabel: "SubClass",
				ParentKey:   []KeyBinding{Composite("full_code", "classification_code", "sub_class_code")},
			}},
		},
		{
			RecordType: models.RecordExpenseObject, Dimension: DimensionExpense,
			Label: "Object", Source: "object_code/objects",
			Keys: []KeyBinding{Composite("full_code", "classification_code", "sub_class_code", "group_code", "code")},
			ParentLinks: []ParentLink{{
				EdgeType:    "HAS_OBJECT",
				ParentLabel: "ExpenseGroup",
				ParentKey:   []KeyBinding{Composite("full_code", "classification_code", "sub_class_code", "group_code")},
			}},
		},
		{
			RecordType: models.RecordSubObject, Dimension: DimensionExpense,
			Label: "SubObject", Source: "object_code/sub_objects",
			Keys: []KeyBinding{Key("uacs_code")},
			ParentLinks: []ParentLink{{
				EdgeType:    "HAS_SUB_OBJECT",
				ParentLabel: "Object",
				ParentKey: []KeyBinding{Composite("full_code",
					"classification_code", "sub_class_code", "group_code", "object_code")},
			}},
		},
	}
}

// BudgetDescriptor строки бюджета NEP/GAA и их связи с измерениями
func BudgetDescriptor() Descriptor {
	return Descriptor{
		RecordType: models.RecordBudget, Dimension: DimensionBudget,
		Label: "BudgetRecord",
		Keys:  []KeyBinding{Key("id")},
		FactLinks: []FactLink{
			{
				Slot: models.SlotOrganization, Property: "org_uacs_code",
				TargetLabel: "Organization", TargetKey: "uacs_code",
				EdgeType: "ALLOCATED_TO", Layout: uacs.OrganizationLayout,
			},
			{
				Slot: models.SlotRegion, Property: "region_code",
				TargetLabel: "Region", TargetKey: "code",
				EdgeType: "LOCATED_IN_REGION", Layout: uacs.RegionLayout,
			},
			{
				Slot: models.SlotFundingSource, Property: "funding_uacs_code",
				TargetLabel: "FundingSource", TargetKey: "uacs_code",
				EdgeType: "FUNDED_BY", Layout: uacs.FundingSourceLayout,
			},
			{
				Slot: models.SlotSubObject, Property: "object_uacs_code",
				TargetLabel: "SubObject", TargetKey: "uacs_code",
				EdgeType: "CLASSIFIED_AS", Layout: uacs.ObjectCodeLayout,
			},
		},
	}
}

// Default возвращает встроенный реестр
func Default() *Registry {
	var all []Descriptor
	all = append(all, FundingDescriptors()...)
	all = append(all, OrganizationDescriptors()...)
	all = append(all, LocationDescriptors()...)
	all = append(all, ProgramDescriptors()...)
	all = append(all, ExpenseDescriptors()...)
	all = append(all, BudgetDescriptor())

	r, err := NewRegistry(all...)
	if err != nil {
		panic("встроенная схема некорректна: " + err.Error())
	}
	return r
}
