// Package diag defines the diagnostic model and the typed errors shared by
// the staging pipeline.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity: info, warning or error; errors are fatal.
//   - Code: compact numeric identifier with a stable string form (STG2001).
//   - Message: short, actionable text.
//   - Primary: source.Provenance of the offending staged call.
//   - Notes: optional secondary provenance/messages.
//
// # Emitting diagnostics
//
// Analyses emit through a Reporter. A *Bag is itself a Reporter with a
// fixed capacity and can be sorted and deduplicated afterwards. Tee fans a
// finding out to several reporters and Unique drops repeats:
//
//	rep := diag.Unique(diag.Tee(bag, extra))
//	diag.ReportError(rep, diag.SemaUndefinedVar, prov, "x is not assigned").Emit()
//
// # Errors
//
// CompileError and SemanticError are the two fatal compile-time failure
// kinds. Neither is cached by the compilation cache. EvalError is the shape
// domain closures use for failures raised while running against an
// Env; closures return it unchanged to the evaluation caller.
package diag
