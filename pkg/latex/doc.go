/*
Package latex renders parameterized LaTeX tabular markup from a small
configuration record.

One call produces two strings: the complete table, sized exactly as
requested, and a bounded preview of at most five rows and five data columns
meant for inline display by a math renderer. Shared cells are byte-identical
between the two outputs, so the preview shows exactly what the full table
contains. Generation is pure and safe for concurrent use; random numeric
cells can be made deterministic by injecting a seeded source with WithRand.
*/
package latex
