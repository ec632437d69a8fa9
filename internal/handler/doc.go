// Package handler implements the HTTP handler that serves the iris dataset as
// XML. It coordinates query parsing, dataset loading, selection, encoding and
// error responses.
package handler
