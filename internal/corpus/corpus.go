package corpus

import "errors"

// ErrStorageUnavailable is returned when the corpus root cannot be created or enumerated.
var ErrStorageUnavailable = errors.New("corpus storage unavailable")

// Document is a single reference text. ID is the storage entry name.
type Document struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Corpus is an ordered set of reference documents. Order is the enumeration
// order of the storage root and decides ties between equally good matches.
type Corpus []Document

// IDs returns the document ids in corpus order.
func (c Corpus) IDs() []string {
	ids := make([]string, 0, len(c))
	for _, doc := range c {
		ids = append(ids, doc.ID)
	}
	return ids
}
