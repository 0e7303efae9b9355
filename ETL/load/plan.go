package load

import (
	"fmt"

	"github.com/LilVoxy/budget_graph/ETL/extractors"
	"github.com/LilVoxy/budget_graph/ETL/report"
	"github.com/LilVoxy/budget_graph/ETL/schema"
)

// PhaseType вид работы фазы
type PhaseType int

const (
	PhaseConstraints PhaseType = iota
	PhaseDimensionNodes
	PhaseFactNodes
	PhaseHierarchyEdges
	PhaseFactEdges
)

// Kind возвращает вид фазы для отчета
func (t PhaseType) Kind() report.PhaseKind {
	switch t {
	case PhaseConstraints:
		return report.KindConstraints
	case PhaseDimensionNodes, PhaseFactNodes:
		return report.KindNodes
	}
	return report.KindEdges
}

const constraintsToken = "constraints"

// Phase шаг синхронизации.
// Provides и Requires задают зависимости: метки узлов, набор фактов или ограничения
type Phase struct {
	Name       string
	Type       PhaseType
	Descriptor schema.Descriptor
	FactSet    extractors.FactSet
	Provides   string
	Requires   []string
}

// Plan упорядоченный список фаз
type Plan struct {
	Phases []Phase
}

func factToken(label string, set extractors.FactSet) string {
	return label + "@" + set.Name()
}

// BuildPlan строит порядок фаз: ограничения, узлы измерений в порядке иерархии,
// узлы фактов по наборам, затем связи иерархии и связи фактов
func BuildPlan(registry *schema.Registry, sets []extractors.FactSet) Plan {
	var p Plan
	p.Phases = append(p.Phases, Phase{Name: constraintsToken, Type: PhaseConstraints, Provides: constraintsToken})

	dims := registry.Dimensions()
	for _, d := range dims {
		p.Phases = append(p.Phases, Phase{
			Name:       "nodes:" + d.Label,
			Type:       PhaseDimensionNodes,
			Descriptor: d,
			Provides:   d.Label,
			Requires:   []string{constraintsToken},
		})
	}

	facts := registry.Facts()
	for _, f := range facts {
		for _, set := range sets {
			p.Phases = append(p.Phases, Phase{
				Name:       "nodes:" + set.Name(),
				Type:       PhaseFactNodes,
				Descriptor: f,
				FactSet:    set,
				Provides:   factToken(f.Label, set),
				Requires:   []string{constraintsToken},
			})
		}
	}

	for _, d := range dims {
		if len(d.ParentLinks) == 0 {
			continue
		}
		p.Phases = append(p.Phases, Phase{
			Name:       "edges:" + d.Label,
			Type:       PhaseHierarchyEdges,
			Descriptor: d,
			Requires:   d.EdgeLabels(),
		})
	}

	for _, f := range facts {
		for _, set := range sets {
			requires := []string{factToken(f.Label, set)}
			for _, l := range f.EdgeLabels() {
				if l != f.Label {
					requires = append(requires, l)
				}
			}
			p.Phases = append(p.Phases, Phase{
				Name:       "edges:" + set.Name(),
				Type:       PhaseFactEdges,
				Descriptor: f,
				FactSet:    set,
				Requires:   requires,
			})
		}
	}
	return p
}

// Validate проверяет, что каждая зависимость фазы обеспечена более ранней фазой
func (p Plan) Validate() error {
	provided := make(map[string]bool)
	for i, ph := range p.Phases {
		if i > 0 && ph.Type == PhaseConstraints {
			return fmt.Errorf("фаза %s: ограничения должны устанавливаться первыми", ph.Name)
		}
		for _, req := range ph.Requires {
			if !provided[req] {
				return fmt.Errorf("фаза %s: зависимость %s не обеспечена предыдущими фазами", ph.Name, req)
			}
		}
		if ph.Provides != "" {
			provided[ph.Provides] = true
		}
	}
	return nil
}

// Names возвращает имена фаз в порядке выполнения
func (p Plan) Names() []string {
	names := make([]string, len(p.Phases))
	for i, ph := range p.Phases {
		names[i] = ph.Name
	}
	return names
}
