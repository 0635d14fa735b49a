package ctxassembly

// snippetItem and toolResultItem adapt the stored record types to
// prioritize.Item without CodeSnippet/ToolResult themselves having to
// carry method names that collide with their own field names.

type snippetItem struct {
	CodeSnippet
}

func (s snippetItem) Text() string      { return s.Code }
func (s snippetItem) TurnNumber() int   { return s.LastAccessed }
func (s snippetItem) IsError() bool     { return false }
func (s snippetItem) FilePath() string  { return s.CodeSnippet.FilePath }
func (s snippetItem) ToolName() string  { return "" }

type toolResultItem struct {
	ToolResult
}

func (r toolResultItem) Text() string     { return r.Summary }
func (r toolResultItem) TurnNumber() int  { return r.Turn }
func (r toolResultItem) IsError() bool    { return r.ToolResult.IsError }
func (r toolResultItem) FilePath() string { return "" }
func (r toolResultItem) ToolName() string { return r.ToolResult.ToolName }
