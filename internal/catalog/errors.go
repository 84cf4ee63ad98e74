package catalog

import "errors"

// ErrNoCoverage signals a legitimate negative search result: the catalog has
// no usable item (or the selected item lacks the required asset) for the
// footprint. It is not an operational failure.
var ErrNoCoverage = errors.New("no catalog coverage for footprint")

// CatalogError wraps transport or query failures against the remote catalog.
type CatalogError struct {
	Op  string
	Err error
}

func (e *CatalogError) Error() string {
	return "catalog " + e.Op + ": " + e.Err.Error()
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}
