// Package tables caches the tables of each (database, schema) pair.
//
// Every pair has its own observable store holding a name-sorted TablesMap
// and the status of the last list request. At most one list request per
// pair is in flight: starting a refetch cancels the previous one, and the
// result of a superseded request is discarded. The server is the source of
// truth; local mutations only mirror responses that succeeded.
package tables
