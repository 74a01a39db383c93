package bigfish

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"golang.org/x/time/rate"

	"github.com/bfgdl/bfg-downloader/internal/bigfish/dto"
	bfghttp "github.com/bfgdl/bfg-downloader/internal/http"
	"github.com/bfgdl/bfg-downloader/internal/logger"
	"github.com/bfgdl/bfg-downloader/internal/model"
)

// DefaultCatalogURL is the public GraphQL endpoint of the web catalog.
const DefaultCatalogURL = "https://www.bigfishgames.com/graphql"

const (
	catalogOperation = "GetCategories"

	// gamesCategoryUID selects the main games listing.
	gamesCategoryUID = "MTg="

	catalogQuery = "query GetCategories($id:String!$pageSize:Int!$currentPage:Int!$filters:ProductAttributeFilterInput!$sort:ProductAttributeSortInput){categories(filters:{category_uid:{in:[$id]}}){items{uid ...CategoryFragmentExtended __typename}__typename}products(pageSize:$pageSize currentPage:$currentPage filter:$filters sort:$sort){...ProductsFragmentExtended __typename}}fragment CategoryFragmentExtended on CategoryTree{...CategoryFragment url_key __typename}fragment CategoryFragment on CategoryTree{uid meta_title meta_keywords meta_description __typename}fragment ProductsFragmentExtended on Products{items{id uid name product_list_date sku platform language url_key __typename}page_info{total_pages __typename}total_count __typename}"
)

// Catalog pages through the web catalog listing.
//
// Requests are spaced by a token-bucket limiter shared by every caller of the
// same Catalog, so concurrent partition crawls stay polite.
//
// Example usage:
//
//	catalog := NewCatalog(client, CatalogOptions{RequestsPerSecond: 4})
//
//	page, err := catalog.FetchPage(ctx, model.PlatformWindows, "114", 1, 250)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%d of %d pages, %d ids\n", 1, page.TotalPages, len(page.WrapIDs))
type Catalog struct {
	client  *bfghttp.Client
	baseURL string
	limiter *rate.Limiter
	log     logger.Logger
}

// CatalogOptions configures a Catalog.
type CatalogOptions struct {
	// URL of the GraphQL endpoint. Default: DefaultCatalogURL
	URL string

	// RequestsPerSecond caps the request rate. Zero or less disables the cap.
	RequestsPerSecond float64

	// Logger receives debug output. Default: no-op
	Logger logger.Logger
}

// NewCatalog creates a Catalog.
func NewCatalog(client *bfghttp.Client, opts CatalogOptions) *Catalog {
	if opts.URL == "" {
		opts.URL = DefaultCatalogURL
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Catalog{
		client:  client,
		baseURL: opts.URL,
		limiter: rate.NewLimiter(limit, 1),
		log:     opts.Logger,
	}
}

// FetchPage returns one page of the listing for a platform and catalog
// language id. page and pageSize start at 1.
//
// A response without a products container yields an empty page rather than
// an error. For every product the WrapID is taken from, in order: the sku
// (exact parse), the url_key (first embedded match), the uid (first embedded
// match). Products with none of these are skipped.
//
// Returns an error if:
//   - page or pageSize is below 1
//   - the request fails or the status is not 200 (*http.TransportError)
//   - the body is not valid JSON (*ProtocolError)
func (c *Catalog) FetchPage(ctx context.Context, platform model.Platform, languageID string, page, pageSize int) (*model.CatalogPage, error) {
	if page < 1 {
		return nil, fmt.Errorf("page must be at least 1, got %d", page)
	}
	if pageSize < 1 {
		return nil, fmt.Errorf("page size must be at least 1, got %d", pageSize)
	}

	reqURL, err := c.pageURL(platform, languageID, page, pageSize)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	c.log.Debug("Fetching catalog page",
		logger.String("platform", platform.String()),
		logger.String("language_id", languageID),
		logger.Int("page", page),
	)

	body, err := c.client.Get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp dto.CatalogResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProtocolError{Op: "catalog", Reason: "decode response", Err: err}
	}

	if resp.Data == nil || resp.Data.Products == nil {
		if len(resp.Errors) > 0 {
			c.log.Warn("Catalog returned no products", logger.String("graphql_error", resp.Errors[0].Message))
		}
		return &model.CatalogPage{WrapIDs: []model.WrapID{}}, nil
	}

	products := resp.Data.Products
	result := &model.CatalogPage{
		WrapIDs:    make([]model.WrapID, 0, len(products.Items)),
		TotalCount: products.TotalCount,
	}
	if products.PageInfo != nil {
		result.TotalPages = products.PageInfo.TotalPages
	}

	for _, item := range products.Items {
		if id, ok := resolveWrapID(item); ok {
			result.WrapIDs = append(result.WrapIDs, id)
		}
	}
	return result, nil
}

func (c *Catalog) pageURL(platform model.Platform, languageID string, page, pageSize int) (string, error) {
	variables, err := json.Marshal(dto.CatalogVariables{
		CurrentPage: page,
		ID:          gamesCategoryUID,
		Filters: dto.CatalogFilters{
			Platform:    dto.Eq{Eq: platform.CatalogID()},
			Language:    dto.Eq{Eq: languageID},
			CategoryUID: dto.Eq{Eq: gamesCategoryUID},
		},
		PageSize: pageSize,
		Sort:     dto.CatalogSort{ProductListDate: "DESC"},
	})
	if err != nil {
		return "", err
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid catalog url: %w", err)
	}
	q := u.Query()
	q.Set("query", catalogQuery)
	q.Set("operationName", catalogOperation)
	q.Set("variables", string(variables))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func resolveWrapID(item dto.ProductItem) (model.WrapID, bool) {
	if id, err := model.ParseWrapID(item.SKU); err == nil {
		return id, true
	}
	if id, ok := model.FirstWrapID(item.URLKey); ok {
		return id, true
	}
	return model.FirstWrapID(item.UID)
}
