package models

import "io"

// Stream ленивая последовательность записей.
// Next возвращает io.EOF после последнего элемента. Поток нельзя перезапустить
type Stream[T any] interface {
	Next() (T, error)
	Close() error
}

// SliceStream поток поверх среза в памяти
type SliceStream[T any] struct {
	items []T
	pos   int
}

// NewSliceStream создает поток из среза
func NewSliceStream[T any](items []T) *SliceStream[T] {
	return &SliceStream[T]{items: items}
}

// Next возвращает следующий элемент среза
func (s *SliceStream[T]) Next() (T, error) {
	var zero T
	if s.pos >= len(s.items) {
		return zero, io.EOF
	}
	item := s.items[s.pos]
	s.pos++
	return item, nil
}

// Close ничего не делает
func (s *SliceStream[T]) Close() error { return nil }

// mapStream применяет функцию к каждому элементу исходного потока
type mapStream[T, U any] struct {
	src Stream[T]
	fn  func(T) (U, error)
}

// MapStream создает поток, преобразующий элементы src функцией fn
func MapStream[T, U any](src Stream[T], fn func(T) (U, error)) Stream[U] {
	return &mapStream[T, U]{src: src, fn: fn}
}

func (m *mapStream[T, U]) Next() (U, error) {
	var zero U
	item, err := m.src.Next()
	if err != nil {
		return zero, err
	}
	return m.fn(item)
}

func (m *mapStream[T, U]) Close() error { return m.src.Close() }

// Collect вычитывает поток целиком. Используется в тестах и для небольших справочников
func Collect[T any](s Stream[T]) ([]T, error) {
	defer s.Close()

	var out []T
	for {
		item, err := s.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
}
