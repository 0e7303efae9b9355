package load

import (
	"io"

	"github.com/LilVoxy/budget_graph/ETL/models"
)

// nextBatch читает из потока до size элементов. done означает, что поток исчерпан
func nextBatch[T any](s models.Stream[T], size int) (batch []T, done bool, err error) {
	batch = make([]T, 0, size)
	for len(batch) < size {
		item, err := s.Next()
		if err == io.EOF {
			return batch, true, nil
		}
		if err != nil {
			return batch, false, err
		}
		batch = append(batch, item)
	}
	return batch, false, nil
}

// dedupNodes оставляет по одному элементу на ключ. Побеждает последний
// встреченный элемент, позиция берется от первого
func dedupNodes(items []models.NodeItem) ([]models.NodeItem, int) {
	index := make(map[string]int, len(items))
	out := make([]models.NodeItem, 0, len(items))
	for _, item := range items {
		key := item.KeyString()
		if i, ok := index[key]; ok {
			out[i] = item
			continue
		}
		index[key] = len(out)
		out = append(out, item)
	}
	return out, len(items) - len(out)
}
