// Package dataset reads the iris records served by the handler. The input
// file is either a single JSON array of objects or newline-delimited JSON,
// and it is read again on every call to Load.
package dataset
