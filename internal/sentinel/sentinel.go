package sentinel

var _ error = Error("")

// Error is a constant-friendly error value. Two Error values compare equal
// when their text matches, so errors.Is works through %w chains without a
// custom Is method.
type Error string

func (e Error) Error() string {
	return string(e)
}
