package gallery

import "github.com/photocore/photoadmin/internal/api"

// Pages загруженные страницы одной области в порядке запросов.
// Значение неизменяемо: Append возвращает новую последовательность.
type Pages struct {
	pages   []api.Page
	cursors []string // курсор, с которым запрошена каждая страница
	tails   []string // id последнего объекта страницы в ответе сервера, до отсева дублей
	seen    map[string]struct{}
	count   int
}

func newPages(cursor string, page api.Page) *Pages {
	return (&Pages{seen: map[string]struct{}{}}).Append(cursor, page)
}

// Append добавляет страницу, полученную по cursor. Объекты, которые уже
// встречались на предыдущих страницах, отбрасываются.
func (p *Pages) Append(cursor string, page api.Page) *Pages {
	next := &Pages{
		pages:   make([]api.Page, len(p.pages), len(p.pages)+1),
		cursors: append(append([]string(nil), p.cursors...), cursor),
		tails:   append(append([]string(nil), p.tails...), tailID(page)),
		seen:    make(map[string]struct{}, len(p.seen)+len(page.Properties)),
		count:   p.count,
	}
	copy(next.pages, p.pages)
	for id := range p.seen {
		next.seen[id] = struct{}{}
	}

	fresh := api.Page{LastID: page.LastID, Properties: make([]api.MediaObject, 0, len(page.Properties))}
	for _, obj := range page.Properties {
		if _, dup := next.seen[obj.ID]; dup {
			continue
		}
		next.seen[obj.ID] = struct{}{}
		fresh.Properties = append(fresh.Properties, obj)
	}
	next.pages = append(next.pages, fresh)
	next.count += len(fresh.Properties)
	return next
}

// Len число загруженных страниц
func (p *Pages) Len() int { return len(p.pages) }

// Count число загруженных объектов
func (p *Pages) Count() int { return p.count }

// Empty в области нет ни одного объекта
func (p *Pages) Empty() bool { return p.count == 0 }

// Page возвращает i-ю страницу
func (p *Pages) Page(i int) api.Page { return p.pages[i] }

// Items все объекты страниц подряд
func (p *Pages) Items() []api.MediaObject {
	items := make([]api.MediaObject, 0, p.count)
	for _, page := range p.pages {
		items = append(items, page.Properties...)
	}
	return items
}

// Index позиция объекта среди загруженных, -1 если его нет
func (p *Pages) Index(id string) int {
	i := 0
	for _, page := range p.pages {
		for _, obj := range page.Properties {
			if obj.ID == id {
				return i
			}
			i++
		}
	}
	return -1
}

// Contains сообщает, загружен ли объект
func (p *Pages) Contains(id string) bool {
	_, ok := p.seen[id]
	return ok
}

// NextCursor курсор следующей страницы
func (p *Pages) NextCursor() string {
	if len(p.pages) == 0 {
		return ""
	}
	return p.pages[len(p.pages)-1].LastID
}

// HasNewPage сообщает, есть ли смысл запрашивать следующую страницу.
// Конец ленты: пустой курсор, курсор равен последнему объекту страницы,
// пустая страница или курсор уже запрашивался.
func (p *Pages) HasNewPage() bool {
	if len(p.pages) == 0 {
		return false
	}
	// Решение принимается по странице в том виде, в каком ее вернул сервер
	last := p.pages[len(p.pages)-1]
	tail := p.tails[len(p.tails)-1]
	if last.LastID == "" || tail == "" || tail == last.LastID {
		return false
	}
	for _, c := range p.cursors {
		if c == last.LastID {
			return false
		}
	}
	return true
}

func tailID(page api.Page) string {
	if len(page.Properties) == 0 {
		return ""
	}
	return page.Properties[len(page.Properties)-1].ID
}
