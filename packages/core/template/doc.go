// Package template implements the string template language used throughout
// test cases:
//
//	$$           a literal "$"
//	${func(a,b)} call a function; arguments may reference variables
//	${var}, $var substitute a variable
//
// Resolution is recursive over strings, slices and maps. A string that is a
// single reference keeps the referenced value's type; mixed strings are
// concatenated. ResolveVariables resolves a whole variable mapping whose
// entries refer to each other, rejecting self references and cycles.
package template
