package rbac

// Principal is the caller a decision is made for.
type Principal struct {
	UserID        int64
	Email         string
	Authenticated bool
	IsSuperuser   bool
	GroupIDs      []int64
	// Locale is the language code detected for the request, if any.
	Locale string
}

// Anonymous returns an unauthenticated principal.
func Anonymous() Principal {
	return Principal{}
}
