// Package shopsearch embeds the product search pipeline in a Go program
// without running the HTTP server.
//
// The client talks to Redis with the Search module directly and uses the
// caller's embedder for both queries and catalog products:
//
//	client, _ := shopsearch.New(ctx,
//	    shopsearch.WithRedis("localhost:6379", ""),
//	    shopsearch.WithEmbedder(myEmbedder),
//	    shopsearch.WithDimensions(1536),
//	)
//	defer client.Close()
//
//	products, _ := shopsearch.LoadCatalog("products.csv")
//	_, _ = client.Ingest(ctx, "products", products.Products())
//
//	hits, _ := client.Search(ctx, "digital piano", map[string]any{
//	    "price": map[string]any{"max": 300},
//	})
//
// A filtered query that matches nothing is retried without filters, so a
// search with an overly narrow filter still returns the closest products.
package shopsearch
