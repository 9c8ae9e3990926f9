package models

// ID - непрозрачный идентификатор записи, выдаваемый хранилищем.
// Пустой ID означает отсутствие ссылки.
type ID string

func (id ID) String() string { return string(id) }

func (id ID) IsZero() bool { return id == "" }

// UniqueIDs убирает пустые значения и повторы, сохраняя порядок первого вхождения
func UniqueIDs(ids []ID) []ID {
	seen := make(map[ID]struct{}, len(ids))
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// DiffIDs возвращает элементы old, которых нет в new, и элементы new, которых нет в old
func DiffIDs(old, new []ID) (removed, added []ID) {
	oldSet := make(map[ID]struct{}, len(old))
	for _, id := range old {
		oldSet[id] = struct{}{}
	}
	newSet := make(map[ID]struct{}, len(new))
	for _, id := range new {
		newSet[id] = struct{}{}
	}

	for _, id := range UniqueIDs(old) {
		if _, ok := newSet[id]; !ok {
			removed = append(removed, id)
		}
	}
	for _, id := range UniqueIDs(new) {
		if _, ok := oldSet[id]; !ok {
			added = append(added, id)
		}
	}
	return removed, added
}

// WithoutID возвращает копию ids без id
func WithoutID(ids []ID, id ID) []ID {
	out := make([]ID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
