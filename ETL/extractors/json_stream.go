package extractors

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/snappy"
)

// Расширения файлов записей в порядке поиска.
// .json.sz сжат потоковым форматом snappy, .json.snappy блочным
var recordExtensions = []string{".json", ".json.sz", ".json.snappy"}

// SourceError ошибка чтения файла источника
type SourceError struct {
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("ошибка чтения %s: %v", e.Path, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// findRecordFile ищет файл base с одним из поддерживаемых расширений
func findRecordFile(base string) (string, bool) {
	for _, ext := range recordExtensions {
		if _, err := os.Stat(base + ext); err == nil {
			return base + ext, true
		}
	}
	return "", false
}

type fileReader struct {
	io.Reader
	file *os.File
}

func (f *fileReader) Close() error { return f.file.Close() }

// openRecordFile открывает файл и при необходимости распаковывает snappy
func openRecordFile(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &SourceError{Path: path, Err: err}
	}

	switch {
	case strings.HasSuffix(path, ".sz"):
		return &fileReader{Reader: snappy.NewReader(file), file: file}, nil
	case strings.HasSuffix(path, ".snappy"):
		data, err := io.ReadAll(file)
		if err != nil {
			file.Close()
			return nil, &SourceError{Path: path, Err: err}
		}
		decoded, err := decompress(data)
		if err != nil {
			file.Close()
			return nil, &SourceError{Path: path, Err: err}
		}
		return &fileReader{Reader: bytes.NewReader(decoded), file: file}, nil
	}
	return file, nil
}

// decompress распаковывает блок snappy
func decompress(data []byte) ([]byte, error) {
	decompressed, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки: %w", err)
	}
	return decompressed, nil
}

// jsonRecords лениво читает JSON-массив объектов поэлементно.
// Объект верхнего уровня считается одной записью
type jsonRecords struct {
	path   string
	rc     io.ReadCloser
	dec    *json.Decoder
	single bool
	done   bool
}

func newJSONRecords(path string) (*jsonRecords, error) {
	rc, err := openRecordFile(path)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(rc)
	first, err := firstSignificantByte(br)
	if err != nil {
		rc.Close()
		if errors.Is(err, io.EOF) {
			return &jsonRecords{path: path, rc: io.NopCloser(nil), done: true}, nil
		}
		return nil, &SourceError{Path: path, Err: err}
	}

	r := &jsonRecords{path: path, rc: rc, dec: json.NewDecoder(br)}
	r.dec.UseNumber()

	switch first {
	case '[':
		if _, err := r.dec.Token(); err != nil {
			rc.Close()
			return nil, &SourceError{Path: path, Err: err}
		}
	case '{':
		r.single = true
	default:
		rc.Close()
		return nil, &SourceError{Path: path, Err: fmt.Errorf("ожидается массив или объект, получено %q", first)}
	}
	return r, nil
}

// firstSignificantByte возвращает первый символ после пробелов и BOM, не извлекая его
func firstSignificantByte(br *bufio.Reader) (byte, error) {
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		br.Discard(3)
	}
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}

// Next возвращает следующую запись или io.EOF
func (r *jsonRecords) Next() (map[string]any, error) {
	if r.done {
		return nil, io.EOF
	}
	if r.single {
		r.done = true
	} else if !r.dec.More() {
		r.done = true
		return nil, io.EOF
	}

	var raw map[string]any
	if err := r.dec.Decode(&raw); err != nil {
		r.done = true
		return nil, &SourceError{Path: r.path, Err: err}
	}
	return raw, nil
}

// Close закрывает файл
func (r *jsonRecords) Close() error {
	return r.rc.Close()
}

// normalizeValue приводит значение JSON к типам, допустимым для свойств узла
func normalizeValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			switch item.(type) {
			case map[string]any, []any:
				continue
			}
			out = append(out, normalizeValue(item))
		}
		return out
	case map[string]any:
		data, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		return string(data)
	}
	return v
}

// stringValue приводит скаляр к строке для ключей и ссылок на родителя
func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// parseAmount разбирает сумму: число или строка с разделителями тысяч
func parseAmount(v any) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		return t.Float64()
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if s == "" {
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	}
	return 0, fmt.Errorf("неподдерживаемый тип суммы %T", v)
}
