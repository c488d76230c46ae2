package mcpserver

// BlockFormatContract describes the canonical outline block format that
// LLM consumers should follow when reading or interpreting blocks.
const BlockFormatContract = `# Taskcheck Block Format Contract

Pages are Markdown files made of outline blocks.

## Structure

` + "```" + `markdown
- TODO write the report
- DONE review the draft
  completed:: 2025-01-20
  completed-time:: 14:05
  - a child block, indented two spaces deeper
` + "```" + `

## Rules

1. **Every block starts with** ` + "`" + `- ` + "`" + ` at its indentation level.
   Nesting is two spaces per level; lines after the bullet that are
   indented deeper without a bullet belong to the same block.
2. **Task markers** are the uppercase first word of a block
   (` + "`" + `TODO` + "`" + `, ` + "`" + `DOING` + "`" + `, ` + "`" + `NOW` + "`" + `, ` + "`" + `LATER` + "`" + `, ` + "`" + `DONE` + "`" + `). A block with no
   marker is plain text.
3. **Properties** are ` + "`" + `key:: value` + "`" + ` lines inside a block. Keys are
   alphanumeric with dashes and underscores.
4. **Completion properties** (` + "`" + `completed` + "`" + `, ` + "`" + `completed-time` + "`" + ` by default)
   are managed automatically: added when a task gains a done marker,
   removed when it loses one. Do not edit them by hand.
5. **Encoding** is UTF-8 with a trailing newline.
`
