// Package pagination drives the DonorsChoose listing API page by page.
//
// The API caps pages at 50 records and gives no page count usable up front,
// so the only end-of-results signal is a page with zero proposals. The
// aggregator therefore walks offsets 0, 50, 100, ... one request at a time,
// pausing a fixed delay between requests.
//
// Example usage:
//
//	c, _ := client.New(client.DefaultConfig("my-app/1.0"))
//	agg, _ := pagination.NewAggregator(c, pagination.DefaultConfig())
//	acc, err := agg.SearchAll(ctx, "canoga park")
//	if err != nil {
//		return err
//	}
//	fmt.Println(acc.CountCheck())
//
// Results are a best-effort snapshot: if proposals are added or removed
// server-side mid-search, offsets can shift between requests.
package pagination
