package extractors

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/LilVoxy/budget_graph/ETL/models"
	"github.com/LilVoxy/budget_graph/ETL/schema"
	"github.com/LilVoxy/budget_graph/ETL/utils"
)

// Source источник нормализованных записей для синхронизации.
// Каждый вызов возвращает новый поток, поэтому записи можно перечитать
type Source interface {
	Dimensions(desc schema.Descriptor) (models.Stream[models.DimensionRecord], error)
	FactSets() ([]FactSet, error)
	Facts(desc schema.Descriptor, set FactSet) (models.Stream[models.FactRecord], error)
}

// InvalidCounter поток, отбрасывающий записи без бизнес-ключа
type InvalidCounter interface {
	Invalid() int64
}

// FactSet набор файлов строк бюджета одного года и типа
type FactSet struct {
	FiscalYear string
	BudgetType models.BudgetType
	Files      []string
}

// Name возвращает имя набора, например budget:2025:GAA
func (s FactSet) Name() string {
	return fmt.Sprintf("budget:%s:%s", s.FiscalYear, s.BudgetType)
}

// Extractor читает записи из каталога данных конвертеров
type Extractor struct {
	dataDir string
	logger  *utils.ETLLogger
}

// NewExtractor создает новый экземпляр Extractor
func NewExtractor(dataDir string, logger *utils.ETLLogger) (*Extractor, error) {
	info, err := os.Stat(dataDir)
	if err != nil {
		return nil, &SourceError{Path: dataDir, Err: err}
	}
	if !info.IsDir() {
		return nil, &SourceError{Path: dataDir, Err: fmt.Errorf("не является каталогом")}
	}
	return &Extractor{dataDir: dataDir, logger: logger}, nil
}

// Dimensions возвращает поток записей измерения. Отсутствующий файл дает пустой поток
func (e *Extractor) Dimensions(desc schema.Descriptor) (models.Stream[models.DimensionRecord], error) {
	base := filepath.Join(e.dataDir, filepath.FromSlash(desc.Source))
	path, ok := findRecordFile(base)
	if !ok {
		e.logger.Warn("Файл не найден: %s.json", base)
		return newRecordStream[models.DimensionRecord](nil, nil), nil
	}

	e.logger.Debug("Чтение %s", path)
	keyFields := desc.KeySourceFields()
	refFields := desc.ParentRefFields()

	convert := func(raw map[string]any) (models.DimensionRecord, bool) {
		fields := make(map[string]string, len(keyFields)+len(refFields))
		for _, f := range keyFields {
			fields[f] = stringValue(raw[f])
		}
		key, ok := schema.ResolveKey(desc.Keys, fields)
		if !ok {
			return models.DimensionRecord{}, false
		}

		refs := make(map[string]string, len(refFields))
		for _, f := range refFields {
			if v := stringValue(raw[f]); v != "" {
				refs[f] = v
			}
		}

		attrs := make(map[string]any, len(raw))
		for k, v := range raw {
			if schema.ValidIdentifier(k) {
				attrs[k] = normalizeValue(v)
			}
		}
		return models.DimensionRecord{Type: desc.RecordType, Key: key, ParentRefs: refs, Attributes: attrs}, true
	}
	return newRecordStream([]string{path}, convert), nil
}

var yearDirRe = regexp.MustCompile(`^\d{4}$`)

// FactSets находит наборы budget/<год>/items/{nep,gaa}_<год>_batch_*.json
func (e *Extractor) FactSets() ([]FactSet, error) {
	budgetDir := filepath.Join(e.dataDir, "budget")
	entries, err := os.ReadDir(budgetDir)
	if err != nil {
		if os.IsNotExist(err) {
			e.logger.Warn("Каталог бюджета не найден: %s", budgetDir)
			return nil, nil
		}
		return nil, &SourceError{Path: budgetDir, Err: err}
	}

	var sets []FactSet
	for _, entry := range entries {
		if !entry.IsDir() || !yearDirRe.MatchString(entry.Name()) {
			continue
		}
		year := entry.Name()
		itemsDir := filepath.Join(budgetDir, year, "items")

		for _, bt := range []models.BudgetType{models.BudgetNEP, models.BudgetGAA} {
			files, err := batchFiles(itemsDir, strings.ToLower(string(bt))+"_"+year+"_batch_")
			if err != nil {
				return nil, err
			}
			if len(files) > 0 {
				sets = append(sets, FactSet{FiscalYear: year, BudgetType: bt, Files: files})
			}
		}
	}

	sort.Slice(sets, func(i, j int) bool {
		if sets[i].FiscalYear != sets[j].FiscalYear {
			return sets[i].FiscalYear < sets[j].FiscalYear
		}
		return sets[i].BudgetType > sets[j].BudgetType // NEP раньше GAA
	})
	return sets, nil
}

func batchFiles(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &SourceError{Path: dir, Err: err}
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		for _, ext := range recordExtensions {
			if strings.HasSuffix(name, ext) {
				files = append(files, filepath.Join(dir, name))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// Facts возвращает поток строк бюджета набора
func (e *Extractor) Facts(desc schema.Descriptor, set FactSet) (models.Stream[models.FactRecord], error) {
	keyField := desc.KeyFields()[0]
	slotProps := make(map[string]string, len(desc.FactLinks))
	for _, l := range desc.FactLinks {
		slotProps[l.Slot] = l.Property
	}
	core := map[string]bool{keyField: true, "budget_type": true, "fiscal_year": true, "amount": true, "description": true}
	for _, p := range slotProps {
		core[p] = true
	}

	convert := func(raw map[string]any) (models.FactRecord, bool) {
		id := stringValue(raw[keyField])
		if id == "" {
			return models.FactRecord{}, false
		}

		bt := set.BudgetType
		if v := stringValue(raw["budget_type"]); v != "" {
			parsed, err := models.ParseBudgetType(v)
			if err != nil {
				return models.FactRecord{}, false
			}
			bt = parsed
		}
		year := stringValue(raw["fiscal_year"])
		if year == "" {
			year = set.FiscalYear
		}
		amount, err := parseAmount(raw["amount"])
		if err != nil {
			e.logger.Warn("%s: некорректная сумма %v", id, raw["amount"])
		}

		fact := models.FactRecord{
			ID:          id,
			BudgetType:  bt,
			FiscalYear:  year,
			Amount:      amount,
			Description: stringValue(raw["description"]),
			ForeignKeys: models.ForeignKeys{
				Organization:  stringValue(raw[slotProps[models.SlotOrganization]]),
				Region:        stringValue(raw[slotProps[models.SlotRegion]]),
				FundingSource: stringValue(raw[slotProps[models.SlotFundingSource]]),
				SubObject:     stringValue(raw[slotProps[models.SlotSubObject]]),
			},
			Attributes: map[string]any{},
		}
		for k, v := range raw {
			if !core[k] && schema.ValidIdentifier(k) {
				fact.Attributes[k] = normalizeValue(v)
			}
		}
		return fact, true
	}
	return newRecordStream(set.Files, convert), nil
}

// recordStream последовательно читает файлы и преобразует записи.
// Записи, которые не удалось преобразовать, отбрасываются и учитываются
type recordStream[T any] struct {
	files   []string
	convert func(map[string]any) (T, bool)
	current *jsonRecords
	invalid atomic.Int64
}

func newRecordStream[T any](files []string, convert func(map[string]any) (T, bool)) *recordStream[T] {
	return &recordStream[T]{files: files, convert: convert}
}

// Next возвращает следующую запись
func (s *recordStream[T]) Next() (T, error) {
	var zero T
	for {
		if s.current == nil {
			if len(s.files) == 0 {
				return zero, io.EOF
			}
			r, err := newJSONRecords(s.files[0])
			if err != nil {
				return zero, err
			}
			s.files = s.files[1:]
			s.current = r
		}

		raw, err := s.current.Next()
		if err == io.EOF {
			s.current.Close()
			s.current = nil
			continue
		}
		if err != nil {
			return zero, err
		}

		rec, ok := s.convert(raw)
		if !ok {
			s.invalid.Add(1)
			continue
		}
		return rec, nil
	}
}

// Close закрывает текущий файл
func (s *recordStream[T]) Close() error {
	if s.current == nil {
		return nil
	}
	err := s.current.Close()
	s.current = nil
	return err
}

// Invalid возвращает количество отброшенных записей
func (s *recordStream[T]) Invalid() int64 {
	return s.invalid.Load()
}
