package partition

import (
	"encoding/json"

	"ingest-worker/elements"
	"ingest-worker/pkg/errors"
)

// partitionJSON accepts documents that were already partitioned
// elsewhere: a JSON array of elements in the interchange form. Elements
// missing an id get a deterministic one.
func partitionJSON(data []byte) ([]elements.Element, error) {
	var elems []elements.Element
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, errors.Wrap(err, errors.ValidationError, "ELEMENT_JSON_INVALID", "failed to decode element json")
	}
	for i := range elems {
		if elems[i].Type == "" {
			elems[i].Type = elements.TypeUncategorizedText
		}
		if elems[i].ID == "" {
			elems[i].ID = elements.HashID(string(elems[i].Type) + "\x00" + elems[i].Text)
		}
	}
	return elems, nil
}
