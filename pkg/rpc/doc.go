// Package rpc is a JSON-RPC 2.0 client for the application's RPC endpoint.
//
// Requests are built as typed values so that they can either be run on
// their own or sent together in a single batch:
//
//	patch := rpc.NewRequest[string]("tables.patch", params)
//	meta := rpc.NewRequest[rpc.Void]("tables.metadata.set", metaParams)
//	if err := client.Batch(ctx, patch, meta); err != nil { ... }
package rpc
