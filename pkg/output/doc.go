// Package output renders sync results, plans and cleanup reports for the
// command line.
//
// Three formats are supported: styled terminal output (lipgloss styles and
// pterm tables), plain text for pipes and NO_COLOR, and indented JSON. The
// CLI resolves FormatAuto with DetectFormat before creating a Renderer.
package output
