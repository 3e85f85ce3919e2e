package toolvocab

// Group classifies tools by the capability they need.
type Group string

const (
	GroupRead    Group = "read"
	GroupEdit    Group = "edit"
	GroupBrowser Group = "browser"
	GroupCommand Group = "command"
	GroupMCP     Group = "mcp"
	GroupModes   Group = "modes"
	GroupOther   Group = "other"
)

var toolGroups = map[ToolName]Group{
	ToolReadFile:                GroupRead,
	ToolFetchInstructions:       GroupRead,
	ToolSearchFiles:             GroupRead,
	ToolListFiles:               GroupRead,
	ToolCodebaseSearch:          GroupRead,
	ToolListCodeDefinitionNames: GroupRead,
	ToolGetWorkspaceDiagnostics: GroupRead,
	ToolApplyDiff:               GroupEdit,
	ToolWriteToFile:             GroupEdit,
	ToolSearchAndReplace:        GroupEdit,
	ToolSearchReplace:           GroupEdit,
	ToolEditFile:                GroupEdit,
	ToolApplyPatch:              GroupEdit,
	ToolGenerateImage:           GroupEdit,
	ToolBrowserAction:           GroupBrowser,
	ToolExecuteCommand:          GroupCommand,
	ToolUseMCPTool:              GroupMCP,
	ToolAccessMCPResource:       GroupMCP,
	ToolSwitchMode:              GroupModes,
	ToolNewTask:                 GroupModes,
}

// GroupOf returns the capability group of a tool. Tools that are always
// available (questions, completion, todos) report GroupOther.
func GroupOf(name ToolName) Group {
	if g, ok := toolGroups[name]; ok {
		return g
	}
	return GroupOther
}

// HasSideEffects reports whether running the tool may change the workspace
// or environment.
func HasSideEffects(name ToolName) bool {
	switch GroupOf(name) {
	case GroupEdit, GroupCommand, GroupBrowser, GroupMCP:
		return true
	default:
		return false
	}
}
