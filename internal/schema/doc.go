// Package schema describes the structural types that every value crossing
// the engine boundary must satisfy, and checks values against them.
//
// A schema is data: a Registry of named Type descriptor trees built from
// int, utf8 string, array, map, record, variant and named ref nodes.
// One generic checker, Verify, walks any descriptor; nothing is special-cased
// per application.
//
// Descriptors are usually written in PTD notation, a JSON encoding where
// each node is a single-key object:
//
//	{"ptd_rec": {"Board": {"ptd_arr": {"ptd_utf8": null}}}}
//	{"ptd_var": {"Playing": {"no_param": null}, "Move": {"with_param": {"ptd_int": null}}}}
//	{"ptd_ref": "Board"}
//
// Engine schemas must declare the roots "state", "cmd" and "extCmd".
package schema
