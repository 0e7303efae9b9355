// Package uacs разбирает коды фиксированной ширины: UACS (организации,
// источники финансирования, объекты расходов) и PSGC (территории).
package uacs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedCode код не соответствует ожидаемой разметке
var ErrMalformedCode = errors.New("некорректный код")

// Segment часть кода фиксированной ширины
type Segment struct {
	Name  string
	Width int
}

// Layout разметка кода: последовательность сегментов
type Layout struct {
	Name     string
	Segments []Segment
}

// Разметки кодов
var (
	OrganizationLayout = Layout{Name: "organization", Segments: []Segment{
		{"department", 2}, {"agency", 3}, {"class", 2}, {"lower_operating_unit", 5},
	}}
	FundingSourceLayout = Layout{Name: "funding_source", Segments: []Segment{
		{"fund_cluster", 2}, {"financing_source", 1}, {"authorization", 2}, {"category", 3},
	}}
	ObjectCodeLayout = Layout{Name: "object_code", Segments: []Segment{
		{"classification", 1}, {"sub_class", 2}, {"group", 2}, {"object", 3}, {"sub_object", 2},
	}}
	PSGCLayout = Layout{Name: "psgc", Segments: []Segment{
		{"region", 2}, {"province", 2}, {"city", 2}, {"barangay", 3},
	}}
	RegionLayout = Layout{Name: "region", Segments: []Segment{{"region", 2}}}
)

// Width возвращает полную длину кода
func (l Layout) Width() int {
	total := 0
	for _, s := range l.Segments {
		total += s.Width
	}
	return total
}

// Validate проверяет длину и состав кода
func (l Layout) Validate(code string) error {
	if len(code) != l.Width() {
		return fmt.Errorf("%w %s %q: ожидается %d цифр", ErrMalformedCode, l.Name, code, l.Width())
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return fmt.Errorf("%w %s %q: недопустимый символ", ErrMalformedCode, l.Name, code)
		}
	}
	return nil
}

// Split разбивает код на сегменты
func (l Layout) Split(code string) ([]string, error) {
	if err := l.Validate(code); err != nil {
		return nil, err
	}
	parts := make([]string, 0, len(l.Segments))
	pos := 0
	for _, s := range l.Segments {
		parts = append(parts, code[pos:pos+s.Width])
		pos += s.Width
	}
	return parts, nil
}

// IsBlank сообщает, что код пуст или состоит из одних нулей.
// Такие коды конвертеры выдают вместо отсутствующего значения
func IsBlank(code string) bool {
	code = strings.TrimSpace(code)
	return code == "" || strings.Trim(code, "0") == ""
}

// OrganizationCode 12-значный код организации UACS
type OrganizationCode struct {
	Department         string
	Agency             string
	Class              string
	LowerOperatingUnit string
}

// ParseOrganizationCode разбирает код организации
func ParseOrganizationCode(code string) (OrganizationCode, error) {
	p, err := OrganizationLayout.Split(code)
	if err != nil {
		return OrganizationCode{}, err
	}
	return OrganizationCode{Department: p[0], Agency: p[1], Class: p[2], LowerOperatingUnit: p[3]}, nil
}

// AgencyUACS 5-значный код ведомства (department + agency)
func (c OrganizationCode) AgencyUACS() string { return c.Department + c.Agency }

// OperatingUnitCode 7-значный код подразделения (class + lower operating unit)
func (c OrganizationCode) OperatingUnitCode() string { return c.Class + c.LowerOperatingUnit }

func (c OrganizationCode) String() string {
	return c.Department + c.Agency + c.Class + c.LowerOperatingUnit
}

// FundingSourceCode 8-значный код источника финансирования
type FundingSourceCode struct {
	FundCluster     string
	FinancingSource string
	Authorization   string
	Category        string
}

// ParseFundingSourceCode разбирает код источника финансирования
func ParseFundingSourceCode(code string) (FundingSourceCode, error) {
	p, err := FundingSourceLayout.Split(code)
	if err != nil {
		return FundingSourceCode{}, err
	}
	return FundingSourceCode{FundCluster: p[0], FinancingSource: p[1], Authorization: p[2], Category: p[3]}, nil
}

func (c FundingSourceCode) String() string {
	return c.FundCluster + c.FinancingSource + c.Authorization + c.Category
}

// ObjectCode 10-значный код объекта расходов
type ObjectCode struct {
	Classification string
	SubClass       string
	Group          string
	Object         string
	SubObject      string
}

// ParseObjectCode разбирает код объекта расходов
func ParseObjectCode(code string) (ObjectCode, error) {
	p, err := ObjectCodeLayout.Split(code)
	if err != nil {
		return ObjectCode{}, err
	}
	return ObjectCode{Classification: p[0], SubClass: p[1], Group: p[2], Object: p[3], SubObject: p[4]}, nil
}

// ObjectFullCode 8-значный код объекта (без sub-object)
func (c ObjectCode) ObjectFullCode() string {
	return c.Classification + c.SubClass + c.Group + c.Object
}

func (c ObjectCode) String() string { return c.ObjectFullCode() + c.SubObject }

// PSGC 9-значный код барангая
type PSGC struct {
	Region   string
	Province string
	City     string
	Barangay string
}

// ParsePSGC разбирает код PSGC
func ParsePSGC(code string) (PSGC, error) {
	p, err := PSGCLayout.Split(code)
	if err != nil {
		return PSGC{}, err
	}
	return PSGC{Region: p[0], Province: p[1], City: p[2], Barangay: p[3]}, nil
}

// ProvinceCode 4-значный код провинции
func (c PSGC) ProvinceCode() string { return c.Region + c.Province }

// CityCode 6-значный код города/муниципалитета
func (c PSGC) CityCode() string { return c.Region + c.Province + c.City }

func (c PSGC) String() string { return c.CityCode() + c.Barangay }
