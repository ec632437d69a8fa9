// Package iris turns loaded dataset records into the XML document returned
// to clients.
//
// A request is described by an immutable Query. Select keeps the records whose
// petal length is strictly greater than the requested minimum, in file order,
// and projects each one into a Flower. Encode renders the flowers under an
// <irises> root with one indented <flower> element per item.
package iris
