package companies

import "errors"

// ErrNotFound indicates the company does not exist.
var ErrNotFound = errors.New("company not found")

// UnknownIDsError reports requested company IDs that do not exist or are not
// eligible for analysis. It fails the selection up front rather than silently
// skipping entities.
type UnknownIDsError struct {
	IDs []string
}

func (e *UnknownIDsError) Error() string {
	return "unknown or ineligible company ids: " + joinIDs(e.IDs)
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += id
	}
	return out
}
