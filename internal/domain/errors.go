package domain

import "errors"

// Error taxonomy shared by the data sources, the registry and the scheduler.
// Callers wrap these with fmt.Errorf("...: %w") and test with errors.Is.
var (
	ErrConfiguration  = errors.New("configuration error")
	ErrTransientFetch = errors.New("transient fetch error")
	ErrDecode         = errors.New("decode error")
	ErrPersistence    = errors.New("persistence error")
	ErrDispatch       = errors.New("dispatch error")
	ErrInvalidHour    = errors.New("invalid hour")
)
