package mcpserver

// HyperedgeFormat describes how hyperedges are written when they are passed
// to or returned from the tools.
const HyperedgeFormat = `# Hypermind Hyperedge Format

A hypergraph is a list of hyperedges. A hyperedge is an ordered chain of
two or more symbols (short concept phrases).

## Writing a hyperedge

Any of these forms is accepted by ` + "`" + `add_hyperedge` + "`" + ` and ` + "`" + `remove_hyperedge` + "`" + `:

` + "```" + `
Ted Nelson -> invented -> hypertext
Ted Nelson, invented, hypertext
` + "```" + `

Separators are tried in the order ` + "`" + `->` + "`" + `, ` + "`" + `→` + "`" + `, ` + "`" + `=>` + "`" + `, ` + "`" + `>` + "`" + `; a line without
arrows is read as one CSV record. List markers and surrounding whitespace are
ignored.

## Filters

` + "`" + `graph_data` + "`" + ` takes filters as groups separated by ` + "`" + `;` + "`" + ` with symbols
separated by ` + "`" + `,` + "`" + `. A hyperedge matches a group when it contains every
symbol of the group; it is shown when it matches any group.

` + "```" + `
cat; dog, bird
` + "```" + `

## Interwingle

- 0 isolated: every hyperedge draws its own nodes
- 1 confluence: hyperedges sharing a prefix share those nodes
- 2 fusion: as confluence, and hyperedge endpoints fuse with equal endpoints
- 3 bridge: one node per symbol

## Depth

With filters set, depth adds that many rings of hyperedges sharing a symbol
with what is already shown. It is clamped to the maximum depth reported.

## CSV

` + "`" + `export_csv` + "`" + ` writes one record per hyperedge; ` + "`" + `import_csv` + "`" + ` reads the same
format back. Duplicate hyperedges are skipped.
`
