package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Summary сводка запуска по фазам
type Summary struct {
	RunID   string        `json:"run_id"`
	Started time.Time     `json:"started"`
	Elapsed time.Duration `json:"elapsed"`
	Phases  []PhaseStats  `json:"phases"`
}

// Totals итоговые счетчики запуска
type Totals struct {
	NodesWritten int64           `json:"nodes_written"`
	EdgesWritten int64           `json:"edges_written"`
	Unresolved   int64           `json:"unresolved"`
	Absent       int64           `json:"absent"`
	Malformed    int64           `json:"malformed"`
	Duplicates   int64           `json:"duplicates"`
	Invalid      int64           `json:"invalid"`
	Skipped      int64           `json:"skipped"`
	FailedPhases int             `json:"failed_phases"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// HasFailures сообщает, что хотя бы одна фаза прервана или отменена
func (s Summary) HasFailures() bool {
	return s.Totals().FailedPhases > 0
}

// Totals суммирует счетчики фаз
func (s Summary) Totals() Totals {
	var t Totals
	for _, p := range s.Phases {
		switch p.Kind {
		case KindNodes:
			t.NodesWritten += p.Written
		case KindEdges:
			t.EdgesWritten += p.Written
		}
		t.Unresolved += p.Unresolved
		t.Absent += p.Absent
		t.Malformed += p.Malformed
		t.Duplicates += p.Duplicates
		t.Invalid += p.Invalid
		t.Skipped += p.Skipped
		t.TotalAmount = t.TotalAmount.Add(p.TotalAmount)
		if p.Status == StatusFailed || p.Status == StatusCanceled {
			t.FailedPhases++
		}
	}
	return t
}

// FailedPhases возвращает имена прерванных фаз
func (s Summary) FailedPhases() []string {
	var out []string
	for _, p := range s.Phases {
		if p.Status == StatusFailed || p.Status == StatusCanceled {
			out = append(out, p.Name)
		}
	}
	return out
}

// WriteTo выводит сводку в виде таблицы
func (s Summary) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	tw := tabwriter.NewWriter(cw, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Запуск %s, длительность %s\n\n", s.RunID, s.Elapsed.Round(time.Millisecond))
	fmt.Fprintln(tw, "ФАЗА\tСТАТУС\tПЕРЕДАНО\tЗАПИСАНО\tНЕ НАЙДЕНО\tОТСУТСТВУЕТ\tНЕКОРРЕКТНО\tДУБЛИ\tВРЕМЯ")
	for _, p := range s.Phases {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			p.Name, p.Status, p.Submitted, p.Written, p.Unresolved,
			p.Absent, p.Malformed, p.Duplicates, p.Elapsed.Round(time.Millisecond))
	}
	if err := tw.Flush(); err != nil {
		return cw.n, err
	}

	for _, p := range s.Phases {
		if len(p.ByEdgeType) > 0 {
			types := make([]string, 0, len(p.ByEdgeType))
			for t := range p.ByEdgeType {
				types = append(types, t)
			}
			sort.Strings(types)
			for _, t := range types {
				c := p.ByEdgeType[t]
				fmt.Fprintf(cw, "  %s %s: записано %d из %d, не найдено %d\n", p.Name, t, c.Written, c.Submitted, c.Unresolved)
			}
		}
		if len(p.FailedBatches) > 0 {
			ranges := make([]string, len(p.FailedBatches))
			for i, b := range p.FailedBatches {
				ranges[i] = b.String()
			}
			fmt.Fprintf(cw, "Фаза %s: не записаны пакеты %s\n", p.Name, strings.Join(ranges, ", "))
		}
		if p.Error != "" && p.Status != StatusSuccess {
			fmt.Fprintf(cw, "Фаза %s: %s\n", p.Name, p.Error)
		}
	}

	t := s.Totals()
	fmt.Fprintf(cw, "\nИтого: узлов %d, связей %d, не найдено %d, отсутствует %d, некорректно %d, пропущено %d, сумма %s\n",
		t.NodesWritten, t.EdgesWritten, t.Unresolved, t.Absent, t.Malformed, t.Skipped, t.TotalAmount.StringFixed(2))
	if t.FailedPhases > 0 {
		fmt.Fprintf(cw, "Прервано фаз: %d\n", t.FailedPhases)
	}
	return cw.n, cw.err
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
