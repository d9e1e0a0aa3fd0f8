package domain

import "fmt"

func unexpectedEvent(aggregateType string, event Event) error {
	return fmt.Errorf("unknown event type for %s: %T", aggregateType, event.Data)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
