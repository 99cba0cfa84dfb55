package slicer

// Parser — парсер одного диалекта слайсера. CanParse дешево проверяет
// маркеры диалекта, Parse выполняет полное извлечение.
type Parser interface {
	Type() string
	CanParse(contents map[string][]byte) bool
	Parse(contents map[string][]byte) (*ParsedProfile, error)
}

// Dispatcher перебирает парсеры в фиксированном порядке приоритета и
// использует первый совпавший. Поддержка нового слайсера аддитивна:
// реализовать Parser и добавить в список.
type Dispatcher struct {
	parsers []Parser
}

// NewDispatcher создает диспетчер со стандартным порядком диалектов.
// Bambu идет раньше Orca: Orca — форк и его маркеры являются подмножеством.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		parsers: []Parser{
			&BambuParser{},
			&OrcaParser{},
			&PrusaParser{},
		},
	}
}

// Parse распознает диалект и извлекает профиль. Возвращает ErrUnknownFormat,
// если ни один парсер не подошел, и *ParseError при сбое извлечения.
func (d *Dispatcher) Parse(contents map[string][]byte) (*ParsedProfile, error) {
	for _, p := range d.parsers {
		if !p.CanParse(contents) {
			continue
		}

		profile, err := p.Parse(contents)
		if err != nil {
			return nil, &ParseError{SlicerType: p.Type(), Err: err}
		}

		if profile.PrinterName == "" {
			profile.PrinterName = DefaultPrinterName
		}
		profile.NormalizedPrinterName = NormalizePrinterName(profile.PrinterName)
		profile.SlicerType = p.Type()
		return profile, nil
	}

	return nil, ErrUnknownFormat
}

// ParseBytes — удобная обертка: распаковывает контейнер и извлекает профиль.
func ParseBytes(data []byte) (*ParsedProfile, error) {
	contents, err := ReadArchive(data)
	if err != nil {
		return nil, ErrUnknownFormat
	}
	return NewDispatcher().Parse(contents)
}
