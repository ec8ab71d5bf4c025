// Package store describes the relational layout the ingester reads pending
// work from and writes records to. It holds SQL as data; implementations live
// in other packages and this package must not import database drivers or
// concrete clients.
package store
