package db

import "fmt"

func decodeAll[T any](docs []Document) ([]*T, error) {
	out := make([]*T, 0, len(docs))
	for _, d := range docs {
		v := new(T)
		if err := d.DataTo(v); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", d.Path, err)
		}
		out = append(out, v)
	}
	return out, nil
}
