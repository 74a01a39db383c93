package model

// CatalogPage is the result of one catalog listing request.
//
// A page with zero TotalPages means the catalog returned no product
// container; callers treat it as the end of the listing.
type CatalogPage struct {
	// WrapIDs found on the page, in listing order.
	WrapIDs []WrapID

	// TotalCount is the number of products across all pages.
	TotalCount int

	// TotalPages is the number of pages for the requested page size.
	TotalPages int
}

// Empty reports whether the page carries no identifiers.
func (p *CatalogPage) Empty() bool {
	return p == nil || len(p.WrapIDs) == 0
}
