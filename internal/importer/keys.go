package importer

import (
	"fmt"
	"strings"

	"github.com/jizdni-rady/backend/internal/models"
)

// StopKeyPolicy derives the deduplication key of an imported stop. Stops
// with equal keys are merged into one persisted row. A nil key never
// matches a non-nil one.
type StopKeyPolicy func(s *models.Stop) *string

// StopKeyByName matches stops on their display name. Two physical stops
// sharing a name collapse into one row under this policy.
func StopKeyByName(s *models.Stop) *string {
	if s.Name == nil {
		return nil
	}
	key := *s.Name
	return &key
}

// keySep joins the parts of a composite stop key. It is a control character
// and does not occur in stop names.
const keySep = "\x1f"

// StopKeyByNameAndDistrict matches stops on display name and municipality
// part. An absent district is encoded as a trailing separator only, so it
// never equals a present one.
func StopKeyByNameAndDistrict(s *models.Stop) *string {
	if s.Name == nil {
		return nil
	}
	key := *s.Name + keySep
	if s.District != nil {
		key += "=" + *s.District
	}
	return &key
}

// ParseStopKeyPolicy resolves a policy by its configuration name.
func ParseStopKeyPolicy(name string) (StopKeyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "name":
		return StopKeyByName, nil
	case "name_district", "name+district":
		return StopKeyByNameAndDistrict, nil
	default:
		return nil, fmt.Errorf("unknown stop key policy %q", name)
	}
}
