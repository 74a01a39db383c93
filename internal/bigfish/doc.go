// Package bigfish talks to the Big Fish Games catalog and game info
// services.
//
// # Catalog
//
// Catalog pages through the GraphQL product listing of one platform and
// language. Each product is mapped to a WrapID from its sku, url_key or uid:
//
//	catalog := bigfish.NewCatalog(client, bigfish.CatalogOptions{RequestsPerSecond: 4})
//	page, err := catalog.FetchPage(ctx, model.PlatformWindows, "114", 1, 250)
//
// An absent products container is reported as an empty page, which callers
// treat as the end of the listing.
//
// # Game Info
//
// GameInfoClient issues the gms.getGameInfo XML-RPC call and turns the
// response into a model.GameInfo. Demo segments are dropped:
//
//	info := bigfish.NewGameInfoClient(client, bigfish.GameInfoOptions{})
//	game, err := info.GetGameInfo(ctx, id)
//
// Responses without the expected members are reported as *ProtocolError.
//
// # Other Sources
//
// ScanInstallers reads WrapIDs from installer file names and
// ExtractWrapIDsFromHTML from links in saved catalog pages.
package bigfish
