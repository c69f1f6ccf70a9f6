package domain

import "time"

// LastProcessedLookup answers "when was this dataset last processed".
type LastProcessedLookup interface {
	LastProcessed(id string) (time.Time, bool)
}

// SelectChanged returns the descriptors that need to be (re)downloaded: those
// with no stored record, and those whose ModifiedAt is strictly after the stored
// timestamp. Input order is preserved.
func SelectChanged(descriptors []DatasetDescriptor, store LastProcessedLookup) []DatasetDescriptor {
	selected := make([]DatasetDescriptor, 0, len(descriptors))
	for _, d := range descriptors {
		last, ok := store.LastProcessed(d.Identifier)
		if !ok || d.ModifiedAt.After(last) {
			selected = append(selected, d)
		}
	}
	return selected
}
