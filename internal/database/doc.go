// Package database provides the SQLite run history of threedibatch.
//
// Every run is stored with its per sub-area outcomes and the simulations
// it submitted, so failed sub-areas of earlier runs can be looked up
// later. The schema is versioned with golang-migrate using migrations
// embedded in the binary; the database file lives in the XDG data
// directory by default.
//
// SQLite is used through modernc.org/sqlite, a CGO-free driver.
package database
