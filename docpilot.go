// Package docpilot provides a local, CLI-based documentation lookup tool.
// It indexes a read-only tree of Markdown documentation into a structural
// catalog (sections, API/component symbols, image references with line
// anchors) and answers keyword queries with ranked candidates backed by
// literal evidence re-read from the source files.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, goldmark/, bbolt/).
package docpilot
