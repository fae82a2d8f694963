// Package report renders crawl reports.
//
// Three formats are provided:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter and FullJSONWriter: JSON for tool integration
//   - MarkdownWriter: GitHub-flavored Markdown with tables and a mermaid chart
//
// All of them implement Writer, and MultiWriter fans one report out to
// several of them. The data types live in the model package.
package report
