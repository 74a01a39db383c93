package dto

// CatalogResponse is the GraphQL envelope of a GetCategories query.
type CatalogResponse struct {
	Data   *CatalogData   `json:"data"`
	Errors []GraphQLError `json:"errors"`
}

// GraphQLError is one entry of the top-level "errors" array.
type GraphQLError struct {
	Message string `json:"message"`
}

// CatalogData holds the products container. Products is nil when the
// server omitted it.
type CatalogData struct {
	Products *Products `json:"products"`
}

// Products is one page of the product listing.
type Products struct {
	Items      []ProductItem `json:"items"`
	TotalCount int           `json:"total_count"`
	PageInfo   *PageInfo     `json:"page_info"`
}

// PageInfo carries the page count for the requested page size.
type PageInfo struct {
	TotalPages int `json:"total_pages"`
}

// ProductItem is a catalog product. Only the fields used to recover a WrapID
// are decoded besides the name.
type ProductItem struct {
	UID    string `json:"uid"`
	Name   string `json:"name"`
	SKU    string `json:"sku"`
	URLKey string `json:"url_key"`
}

// CatalogVariables is the "variables" parameter of the query.
type CatalogVariables struct {
	CurrentPage int            `json:"currentPage"`
	ID          string         `json:"id"`
	Filters     CatalogFilters `json:"filters"`
	PageSize    int            `json:"pageSize"`
	Sort        CatalogSort    `json:"sort"`
}

// CatalogFilters narrows the listing to one platform and language.
type CatalogFilters struct {
	Platform    Eq `json:"platform"`
	Language    Eq `json:"language"`
	CategoryUID Eq `json:"category_uid"`
}

// Eq is a GraphQL equality filter.
type Eq struct {
	Eq string `json:"eq"`
}

// CatalogSort orders products newest first.
type CatalogSort struct {
	ProductListDate string `json:"product_list_date"`
}
