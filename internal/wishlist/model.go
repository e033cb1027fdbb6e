package wishlist

import "context"

// Store is the contract shared by the guest draft wishlist and the remote one.
type Store interface {
	IDs() []string
	Loaded() bool
	Contains(productID string) bool
	Add(ctx context.Context, productID string) error
	Remove(ctx context.Context, productID string) error
	Toggle(ctx context.Context, productID string) error
	Clear(ctx context.Context) error
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func cloneIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return append([]string(nil), ids...)
}
