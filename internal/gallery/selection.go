package gallery

// Selection упорядоченное множество выбранных объектов одной области
type Selection struct {
	ids   []string
	index map[string]struct{}
}

// NewSelection создает выбор из ids, повторы игнорируются
func NewSelection(ids ...string) *Selection {
	s := &Selection{index: make(map[string]struct{})}
	for _, id := range ids {
		if !s.Has(id) {
			s.Toggle(id)
		}
	}
	return s
}

// Toggle добавляет id, если его нет, иначе убирает. Возвращает, выбран ли id после вызова.
func (s *Selection) Toggle(id string) bool {
	if _, ok := s.index[id]; ok {
		delete(s.index, id)
		for i, v := range s.ids {
			if v == id {
				s.ids = append(s.ids[:i], s.ids[i+1:]...)
				break
			}
		}
		return false
	}
	s.index[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

// Has сообщает, выбран ли id
func (s *Selection) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// IDs копия выбранных id в порядке выбора
func (s *Selection) IDs() []string {
	return append([]string(nil), s.ids...)
}

// Len число выбранных объектов
func (s *Selection) Len() int { return len(s.ids) }

// Empty ничего не выбрано
func (s *Selection) Empty() bool { return len(s.ids) == 0 }

// Clear сбрасывает выбор
func (s *Selection) Clear() {
	s.ids = nil
	s.index = make(map[string]struct{})
}
