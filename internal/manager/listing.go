package manager

import "taskhub/internal/query"

type document interface {
	Document() (map[string]any, error)
}

// Listing - результат List: либо записи, либо их количество (count=true)
type Listing[T document] struct {
	Items      []T
	Count      int64
	Counted    bool
	Projection query.Projection
}

// Data возвращает то, что уходит в поле data ответа
func (l Listing[T]) Data() (any, error) {
	if l.Counted {
		return l.Count, nil
	}
	if l.Projection.IsEmpty() {
		return l.Items, nil
	}

	docs := make([]map[string]any, 0, len(l.Items))
	for _, item := range l.Items {
		doc, err := item.Document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, l.Projection.Apply(doc))
	}
	return docs, nil
}
