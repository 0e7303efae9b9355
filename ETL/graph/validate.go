package graph

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/LilVoxy/budget_graph/ETL/models"
)

// Validation размер графа после синхронизации и пустые ожидаемые метки и связи
type Validation struct {
	Nodes         map[string]int64 `json:"nodes"`
	Relationships map[string]int64 `json:"relationships"`
	EmptyLabels   []string         `json:"empty_labels,omitempty"`
	EmptyEdges    []string         `json:"empty_edges,omitempty"`
}

// Validate считает узлы и связи и сверяет их с ожидаемыми метками и типами связей
func Validate(ctx context.Context, counter Counter, labels []string, specs []models.EdgeSpec) (Validation, error) {
	nodes, err := counter.CountNodes(ctx)
	if err != nil {
		return Validation{}, fmt.Errorf("ошибка при подсчете узлов: %w", err)
	}
	rels, err := counter.CountRelationships(ctx)
	if err != nil {
		return Validation{}, fmt.Errorf("ошибка при подсчете связей: %w", err)
	}

	v := Validation{Nodes: nodes, Relationships: rels}
	for _, l := range labels {
		if nodes[l] == 0 {
			v.EmptyLabels = append(v.EmptyLabels, l)
		}
	}
	seen := map[string]bool{}
	for _, s := range specs {
		if !seen[s.Type] && rels[s.Type] == 0 {
			v.EmptyEdges = append(v.EmptyEdges, s.Type)
		}
		seen[s.Type] = true
	}
	return v, nil
}

// OK сообщает, что все ожидаемые метки и связи присутствуют
func (v Validation) OK() bool {
	return len(v.EmptyLabels) == 0 && len(v.EmptyEdges) == 0
}

// WriteTo печатает отчет проверки
func (v Validation) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}

	fmt.Fprintln(cw, "Узлы по меткам:")
	writeCounts(cw, v.Nodes)
	fmt.Fprintln(cw, "Связи по типам:")
	writeCounts(cw, v.Relationships)
	for _, l := range v.EmptyLabels {
		fmt.Fprintf(cw, "  нет узлов %s\n", l)
	}
	for _, t := range v.EmptyEdges {
		fmt.Fprintf(cw, "  нет связей %s\n", t)
	}
	return cw.n, cw.err
}

func writeCounts(w io.Writer, counts map[string]int64) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-28s %d\n", name, counts[name])
	}
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}
