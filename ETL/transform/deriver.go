// Package transform выводит связи графа из записей измерений и фактов.
package transform

import (
	"github.com/LilVoxy/budget_graph/ETL/models"
	"github.com/LilVoxy/budget_graph/ETL/schema"
	"github.com/LilVoxy/budget_graph/ETL/uacs"
)

// Outcome итог вывода связей
type Outcome struct {
	Derived   int64 // выведено связей
	Absent    int64 // ключ не задан или состоит из нулей
	Malformed int64 // код не соответствует разметке
	Skipped   int64 // конец связи относится к незагруженной метке
}

// Add прибавляет other
func (o *Outcome) Add(other Outcome) {
	o.Derived += other.Derived
	o.Absent += other.Absent
	o.Malformed += other.Malformed
	o.Skipped += other.Skipped
}

// EdgeDeriver строит связи по дескрипторам реестра.
// Не зависит от состояния загрузчика узлов: работает по повторно прочитанным записям
type EdgeDeriver struct {
	excluded map[string]bool
}

// NewEdgeDeriver создает новый экземпляр EdgeDeriver
func NewEdgeDeriver() *EdgeDeriver {
	return &EdgeDeriver{excluded: map[string]bool{}}
}

// Excluding возвращает копию, пропускающую связи с концами на указанных метках
func (d *EdgeDeriver) Excluding(labels ...string) *EdgeDeriver {
	ex := make(map[string]bool, len(d.excluded)+len(labels))
	for l := range d.excluded {
		ex[l] = true
	}
	for _, l := range labels {
		ex[l] = true
	}
	return &EdgeDeriver{excluded: ex}
}

func (d *EdgeDeriver) blocked(spec models.EdgeSpec) bool {
	return d.excluded[spec.FromLabel] || d.excluded[spec.ToLabel]
}

// HierarchyEdges возвращает по одной связи на каждую связь с родителем,
// для которой в записи задана ссылка на родителя
func (d *EdgeDeriver) HierarchyEdges(desc schema.Descriptor, rec models.DimensionRecord) ([]models.Edge, Outcome) {
	var out Outcome
	var edges []models.Edge

	for _, link := range desc.ParentLinks {
		parent, ok := schema.ResolveKey(link.ParentKey, rec.ParentRefs)
		if !ok || blankKey(parent) {
			out.Absent++
			continue
		}

		child := rec.Key
		if link.IsBridge() {
			child, ok = schema.ResolveKey(link.ChildKey, rec.ParentRefs)
			if !ok || blankKey(child) {
				out.Absent++
				continue
			}
		}

		spec := desc.LinkSpec(link)
		if d.blocked(spec) {
			out.Skipped++
			continue
		}
		edges = append(edges, models.Edge{Spec: spec, From: parent, To: child})
		out.Derived++
	}
	return edges, out
}

// FactEdges возвращает по одной связи на каждый разрешимый слот факта.
// Пустой слот учитывается как отсутствующий, код с неверной разметкой как некорректный
func (d *EdgeDeriver) FactEdges(desc schema.Descriptor, fact models.FactRecord) ([]models.Edge, Outcome) {
	var out Outcome
	var edges []models.Edge

	factKey := map[string]string{desc.KeyFields()[0]: fact.ID}
	for _, link := range desc.FactLinks {
		code := fact.ForeignKeys.Get(link.Slot)
		if uacs.IsBlank(code) {
			out.Absent++
			continue
		}
		if err := link.Layout.Validate(code); err != nil {
			out.Malformed++
			continue
		}

		spec := desc.FactSpec(link)
		if d.blocked(spec) {
			out.Skipped++
			continue
		}
		edges = append(edges, models.Edge{
			Spec: spec,
			From: factKey,
			To:   map[string]string{link.TargetKey: code},
		})
		out.Derived++
	}
	return edges, out
}

// HierarchyStream выводит связи иерархии из потока записей измерения
func (d *EdgeDeriver) HierarchyStream(desc schema.Descriptor, records models.Stream[models.DimensionRecord]) *EdgeStream[models.DimensionRecord] {
	return newEdgeStream(records, func(rec models.DimensionRecord) ([]models.Edge, Outcome) {
		return d.HierarchyEdges(desc, rec)
	})
}

// FactStream выводит связи фактов из потока строк бюджета
func (d *EdgeDeriver) FactStream(desc schema.Descriptor, facts models.Stream[models.FactRecord]) *EdgeStream[models.FactRecord] {
	return newEdgeStream(facts, func(f models.FactRecord) ([]models.Edge, Outcome) {
		return d.FactEdges(desc, f)
	})
}

func blankKey(key map[string]string) bool {
	for _, v := range key {
		if uacs.IsBlank(v) {
			return true
		}
	}
	return false
}

// EdgeStream поток связей, выведенных из потока записей.
// Итог вывода доступен через Outcome после исчерпания потока
type EdgeStream[T any] struct {
	src     models.Stream[T]
	derive  func(T) ([]models.Edge, Outcome)
	pending []models.Edge
	outcome Outcome
}

func newEdgeStream[T any](src models.Stream[T], derive func(T) ([]models.Edge, Outcome)) *EdgeStream[T] {
	return &EdgeStream[T]{src: src, derive: derive}
}

// Next возвращает следующую связь
func (s *EdgeStream[T]) Next() (models.Edge, error) {
	for len(s.pending) == 0 {
		rec, err := s.src.Next()
		if err != nil {
			return models.Edge{}, err
		}
		edges, out := s.derive(rec)
		s.outcome.Add(out)
		s.pending = edges
	}
	e := s.pending[0]
	s.pending = s.pending[1:]
	return e, nil
}

// Close закрывает исходный поток
func (s *EdgeStream[T]) Close() error { return s.src.Close() }

// Outcome возвращает итог вывода по прочитанным записям
func (s *EdgeStream[T]) Outcome() Outcome { return s.outcome }
