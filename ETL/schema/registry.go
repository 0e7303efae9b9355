// Package schema описывает декларативную схему графа: метки узлов, бизнес-ключи,
// связи иерархий и связи фактов с измерениями.
package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/LilVoxy/budget_graph/ETL/models"
	"github.com/LilVoxy/budget_graph/ETL/uacs"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier проверяет имя метки, свойства или типа связи
func ValidIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// KeyBinding задает свойство узла и поля записи, из которых оно собирается.
// Значение свойства равно конкатенации полей From (по умолчанию [Field])
type KeyBinding struct {
	Field string
	From  []string
}

// Key создает привязку свойства к одноименному полю записи
func Key(field string) KeyBinding {
	return KeyBinding{Field: field}
}

// Composite создает привязку свойства к конкатенации нескольких полей
func Composite(field string, from ...string) KeyBinding {
	return KeyBinding{Field: field, From: from}
}

// Sources возвращает поля записи, участвующие в значении
func (b KeyBinding) Sources() []string {
	if len(b.From) == 0 {
		return []string{b.Field}
	}
	return b.From
}

// Resolve собирает значение из полей записи. Если хотя бы одно поле пустое,
// значение считается отсутствующим
func (b KeyBinding) Resolve(fields map[string]string) (string, bool) {
	var sb strings.Builder
	for _, f := range b.Sources() {
		v := fields[f]
		if v == "" {
			return "", false
		}
		sb.WriteString(v)
	}
	return sb.String(), true
}

// ResolveKey собирает ключ узла по набору привязок
func ResolveKey(bindings []KeyBinding, fields map[string]string) (map[string]string, bool) {
	key := make(map[string]string, len(bindings))
	for _, b := range bindings {
		v, ok := b.Resolve(fields)
		if !ok {
			return nil, false
		}
		key[b.Field] = v
	}
	return key, true
}

// ParentLink связь иерархии: родитель -[EdgeType]-> ребенок.
// Пустые ChildLabel/ChildKey означают узел самой записи. Связь с явным
// ребенком (мостовая) выводится из записи, но соединяет два других узла
type ParentLink struct {
	EdgeType    string
	ParentLabel string
	ParentKey   []KeyBinding
	ChildLabel  string
	ChildKey    []KeyBinding
}

// IsBridge сообщает, что связь соединяет не узел самой записи
func (l ParentLink) IsBridge() bool {
	return l.ChildLabel != ""
}

// FactLink связь факта с измерением через слот внешнего ключа
type FactLink struct {
	Slot        string
	Property    string // свойство узла факта с исходным кодом
	TargetLabel string
	TargetKey   string
	EdgeType    string
	Layout      uacs.Layout
}

// Descriptor описание типа записи
type Descriptor struct {
	RecordType  models.RecordType
	Dimension   string
	Label       string
	Source      string // путь к файлу относительно каталога данных, без расширения
	Keys        []KeyBinding
	ParentLinks []ParentLink
	FactLinks   []FactLink
}

// KeyFields возвращает имена ключевых свойств узла
func (d Descriptor) KeyFields() []string {
	fields := make([]string, len(d.Keys))
	for i, k := range d.Keys {
		fields[i] = k.Field
	}
	return fields
}

// IsFact сообщает, что дескриптор описывает факт
func (d Descriptor) IsFact() bool {
	return d.RecordType == models.RecordBudget
}

// KeySourceFields возвращает поля записи, из которых собирается ключ
func (d Descriptor) KeySourceFields() []string {
	return collectSources(d.Keys)
}

// ParentRefFields возвращает поля записи, нужные для вывода связей иерархии
func (d Descriptor) ParentRefFields() []string {
	var bindings []KeyBinding
	for _, l := range d.ParentLinks {
		bindings = append(bindings, l.ParentKey...)
		bindings = append(bindings, l.ChildKey...)
	}
	return collectSources(bindings)
}

// LinkSpec возвращает тип и концы связи иерархии
func (d Descriptor) LinkSpec(l ParentLink) models.EdgeSpec {
	child := d.Label
	if l.IsBridge() {
		child = l.ChildLabel
	}
	return models.EdgeSpec{Type: l.EdgeType, FromLabel: l.ParentLabel, ToLabel: child}
}

// FactSpec возвращает тип и концы связи факта
func (d Descriptor) FactSpec(l FactLink) models.EdgeSpec {
	return models.EdgeSpec{Type: l.EdgeType, FromLabel: d.Label, ToLabel: l.TargetLabel}
}

// EdgeLabels возвращает метки, на которые опираются связи дескриптора
func (d Descriptor) EdgeLabels() []string {
	seen := map[string]bool{}
	var labels []string
	add := func(l string) {
		if !seen[l] {
			seen[l] = true
			labels = append(labels, l)
		}
	}
	for _, l := range d.ParentLinks {
		spec := d.LinkSpec(l)
		add(spec.FromLabel)
		add(spec.ToLabel)
	}
	for _, l := range d.FactLinks {
		add(d.Label)
		add(l.TargetLabel)
	}
	return labels
}

func collectSources(bindings []KeyBinding) []string {
	seen := map[string]bool{}
	var out []string
	for _, b := range bindings {
		for _, f := range b.Sources() {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// Constraint ограничение уникальности для метки
type Constraint struct {
	Label  string
	Fields []string
}

// Registry статический реестр дескрипторов
type Registry struct {
	descriptors []Descriptor
	byType      map[models.RecordType]int
	keys        map[string][]string
}

// NewRegistry создает реестр и проверяет согласованность дескрипторов.
// Дескрипторы объявляются в порядке иерархии: родитель раньше ребенка
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{
		byType: make(map[models.RecordType]int, len(descriptors)),
		keys:   make(map[string][]string, len(descriptors)),
	}

	for i, d := range descriptors {
		if err := r.add(i, d); err != nil {
			return nil, err
		}
	}
	// Цели фактов проверяются после объявления всех измерений
	for _, d := range r.descriptors {
		for _, fl := range d.FactLinks {
			if err := r.checkFactLink(d, fl); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (r *Registry) add(i int, d Descriptor) error {
	if d.RecordType == "" {
		return fmt.Errorf("дескриптор #%d: не задан тип записи", i)
	}
	if _, dup := r.byType[d.RecordType]; dup {
		return fmt.Errorf("тип записи %s объявлен повторно", d.RecordType)
	}
	if !ValidIdentifier(d.Label) {
		return fmt.Errorf("%s: недопустимая метка %q", d.RecordType, d.Label)
	}
	if _, dup := r.keys[d.Label]; dup {
		return fmt.Errorf("%s: ключ метки %s объявлен повторно", d.RecordType, d.Label)
	}
	if len(d.Keys) == 0 {
		return fmt.Errorf("%s: не задан бизнес-ключ", d.RecordType)
	}
	if err := checkBindings(d.RecordType, d.Keys); err != nil {
		return err
	}

	for _, l := range d.ParentLinks {
		if !ValidIdentifier(l.EdgeType) {
			return fmt.Errorf("%s: недопустимый тип связи %q", d.RecordType, l.EdgeType)
		}
		if err := r.checkRef(d.RecordType, l.ParentLabel, l.ParentKey); err != nil {
			return err
		}
		if l.IsBridge() {
			if err := r.checkRef(d.RecordType, l.ChildLabel, l.ChildKey); err != nil {
				return err
			}
		} else if len(l.ChildKey) > 0 {
			return fmt.Errorf("%s: ключ ребенка задан без метки", d.RecordType)
		}
	}

	r.byType[d.RecordType] = i
	r.keys[d.Label] = d.KeyFields()
	r.descriptors = append(r.descriptors, d)
	return nil
}

// checkRef проверяет, что метка объявлена раньше и привязки покрывают ее ключ
func (r *Registry) checkRef(rt models.RecordType, label string, bindings []KeyBinding) error {
	keyFields, ok := r.keys[label]
	if !ok {
		return fmt.Errorf("%s: метка %s не объявлена раньше", rt, label)
	}
	if err := checkBindings(rt, bindings); err != nil {
		return err
	}
	if !sameFields(keyFields, bindings) {
		return fmt.Errorf("%s: привязки не совпадают с ключом %s %v", rt, label, keyFields)
	}
	return nil
}

func (r *Registry) checkFactLink(d Descriptor, fl FactLink) error {
	if fl.Slot == "" || !ValidIdentifier(fl.Property) {
		return fmt.Errorf("%s: некорректный слот %q", d.RecordType, fl.Slot)
	}
	if !ValidIdentifier(fl.EdgeType) {
		return fmt.Errorf("%s: недопустимый тип связи %q", d.RecordType, fl.EdgeType)
	}
	keyFields, ok := r.keys[fl.TargetLabel]
	if !ok {
		return fmt.Errorf("%s: метка %s не объявлена", d.RecordType, fl.TargetLabel)
	}
	if len(keyFields) != 1 || keyFields[0] != fl.TargetKey {
		return fmt.Errorf("%s: ключ %s не совпадает с ключом %s %v", d.RecordType, fl.TargetKey, fl.TargetLabel, keyFields)
	}
	if fl.Layout.Width() == 0 {
		return fmt.Errorf("%s: не задана разметка слота %s", d.RecordType, fl.Slot)
	}
	return nil
}

func checkBindings(rt models.RecordType, bindings []KeyBinding) error {
	for _, b := range bindings {
		if !ValidIdentifier(b.Field) {
			return fmt.Errorf("%s: недопустимое свойство %q", rt, b.Field)
		}
		for _, f := range b.From {
			if f == "" {
				return fmt.Errorf("%s: пустое поле в привязке %s", rt, b.Field)
			}
		}
	}
	return nil
}

func sameFields(fields []string, bindings []KeyBinding) bool {
	if len(fields) != len(bindings) {
		return false
	}
	want := make(map[string]bool, len(fields))
	for _, f := range fields {
		want[f] = true
	}
	for _, b := range bindings {
		if !want[b.Field] {
			return false
		}
	}
	return true
}

// Lookup возвращает дескриптор по типу записи
func (r *Registry) Lookup(rt models.RecordType) (Descriptor, bool) {
	i, ok := r.byType[rt]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[i], true
}

// Dimensions возвращает дескрипторы измерений в порядке иерархии
func (r *Registry) Dimensions() []Descriptor {
	var out []Descriptor
	for _, d := range r.descriptors {
		if !d.IsFact() {
			out = append(out, d)
		}
	}
	return out
}

// Facts возвращает дескрипторы фактов
func (r *Registry) Facts() []Descriptor {
	var out []Descriptor
	for _, d := range r.descriptors {
		if d.IsFact() {
			out = append(out, d)
		}
	}
	return out
}

// Constraints возвращает по одному ограничению уникальности на метку
func (r *Registry) Constraints() []Constraint {
	out := make([]Constraint, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, Constraint{Label: d.Label, Fields: d.KeyFields()})
	}
	return out
}

// KeyFieldsFor возвращает ключевые свойства метки
func (r *Registry) KeyFieldsFor(label string) ([]string, bool) {
	k, ok := r.keys[label]
	return k, ok
}

// EdgeSpecs возвращает все объявленные связи: сначала иерархии, затем фактов
func (r *Registry) EdgeSpecs() []models.EdgeSpec {
	seen := map[models.EdgeSpec]bool{}
	var out []models.EdgeSpec
	add := func(s models.EdgeSpec) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, d := range r.descriptors {
		for _, l := range d.ParentLinks {
			add(d.LinkSpec(l))
		}
	}
	for _, d := range r.descriptors {
		for _, l := range d.FactLinks {
			add(d.FactSpec(l))
		}
	}
	return out
}
