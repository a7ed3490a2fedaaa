// Package diag defines the diagnostic records reported by every stage of the
// conversion pipeline.
//
// A [Diagnostic] carries a [Severity], a [Kind] from the fixed error taxonomy,
// a message, and a source position. A [List] accumulates diagnostics across
// compilation units without ever dropping one; it implements error so callers
// can return the whole list when [List.HasFatal] reports true.
package diag
