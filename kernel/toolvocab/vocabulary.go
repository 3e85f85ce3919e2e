// Package toolvocab holds the closed set of tool and parameter names that may
// appear as tags in assistant output, compiled once into open-tag lookup tables.
package toolvocab

import (
	"strings"
	"sync"
)

// ToolName identifies one tool in the tag vocabulary.
type ToolName string

// ParamName identifies one tool parameter in the tag vocabulary.
type ParamName string

const (
	ToolExecuteCommand          ToolName = "execute_command"
	ToolReadFile                ToolName = "read_file"
	ToolFetchInstructions       ToolName = "fetch_instructions"
	ToolWriteToFile             ToolName = "write_to_file"
	ToolApplyDiff               ToolName = "apply_diff"
	ToolSearchFiles             ToolName = "search_files"
	ToolListFiles               ToolName = "list_files"
	ToolCodebaseSearch          ToolName = "codebase_search"
	ToolListCodeDefinitionNames ToolName = "list_code_definition_names"
	ToolBrowserAction           ToolName = "browser_action"
	ToolUseMCPTool              ToolName = "use_mcp_tool"
	ToolAccessMCPResource       ToolName = "access_mcp_resource"
	ToolAskFollowupQuestion     ToolName = "ask_followup_question"
	ToolAttemptCompletion       ToolName = "attempt_completion"
	ToolSwitchMode              ToolName = "switch_mode"
	ToolNewTask                 ToolName = "new_task"
	ToolUpdateTodoList          ToolName = "update_todo_list"
	ToolRunSlashCommand         ToolName = "run_slash_command"
	ToolGenerateImage           ToolName = "generate_image"
	ToolSearchAndReplace        ToolName = "search_and_replace"
	ToolSearchReplace           ToolName = "search_replace"
	ToolEditFile                ToolName = "edit_file"
	ToolApplyPatch              ToolName = "apply_patch"
	ToolGetWorkspaceDiagnostics ToolName = "get_workspace_diagnostics"
)

// ParamContent is the one parameter whose value keeps inner whitespace.
const ParamContent ParamName = "content"

const (
	ParamCommand    ParamName = "command"
	ParamPath       ParamName = "path"
	ParamCwd        ParamName = "cwd"
	ParamQuestion   ParamName = "question"
	ParamResult     ParamName = "result"
	ParamServerName ParamName = "server_name"
	ParamToolName   ParamName = "tool_name"
	ParamArguments  ParamName = "arguments"
	ParamURI        ParamName = "uri"
)

// ToolNames is the closed tool vocabulary.
var ToolNames = []ToolName{
	ToolExecuteCommand,
	ToolReadFile,
	ToolFetchInstructions,
	ToolWriteToFile,
	ToolApplyDiff,
	ToolSearchFiles,
	ToolListFiles,
	ToolCodebaseSearch,
	ToolListCodeDefinitionNames,
	ToolBrowserAction,
	ToolUseMCPTool,
	ToolAccessMCPResource,
	ToolAskFollowupQuestion,
	ToolAttemptCompletion,
	ToolSwitchMode,
	ToolNewTask,
	ToolUpdateTodoList,
	ToolRunSlashCommand,
	ToolGenerateImage,
	ToolSearchAndReplace,
	ToolSearchReplace,
	ToolEditFile,
	ToolApplyPatch,
	ToolGetWorkspaceDiagnostics,
}

// ParamNames is the closed parameter vocabulary.
var ParamNames = []ParamName{
	ParamCommand,
	ParamPath,
	ParamContent,
	"regex",
	"file_pattern",
	"recursive",
	"action",
	"url",
	"coordinate",
	"text",
	ParamServerName,
	ParamToolName,
	ParamArguments,
	ParamURI,
	ParamQuestion,
	ParamResult,
	"diff",
	"mode_slug",
	"reason",
	"line",
	"mode",
	"message",
	ParamCwd,
	"follow_up",
	"task",
	"size",
	"query",
	"args",
	"start_line",
	"end_line",
	"todos",
	"prompt",
	"image",
	"files",
	"operations",
	"patch",
	"file_path",
	"old_string",
	"new_string",
	"expected_replacements",
}

var aliases = map[string]ToolName{
	"write_file": ToolWriteToFile,
}

type tagEntry[T ~string] struct {
	tag  string
	name T
}

// Vocabulary is an immutable open-tag lookup. It is safe for concurrent use.
type Vocabulary struct {
	tools    []tagEntry[ToolName]
	params   []tagEntry[ParamName]
	toolSet  map[ToolName]struct{}
	paramSet map[ParamName]struct{}
}

// New compiles a vocabulary from tool and parameter names. Order is kept, so
// the first registered tag wins when two tags end at the same offset.
func New(tools []ToolName, params []ParamName) *Vocabulary {
	v := &Vocabulary{
		tools:    make([]tagEntry[ToolName], 0, len(tools)),
		params:   make([]tagEntry[ParamName], 0, len(params)),
		toolSet:  make(map[ToolName]struct{}, len(tools)),
		paramSet: make(map[ParamName]struct{}, len(params)),
	}
	for _, name := range tools {
		if name == "" {
			continue
		}
		if _, dup := v.toolSet[name]; dup {
			continue
		}
		v.toolSet[name] = struct{}{}
		v.tools = append(v.tools, tagEntry[ToolName]{tag: OpenTag(name), name: name})
	}
	for _, name := range params {
		if name == "" {
			continue
		}
		if _, dup := v.paramSet[name]; dup {
			continue
		}
		v.paramSet[name] = struct{}{}
		v.params = append(v.params, tagEntry[ParamName]{tag: OpenTag(name), name: name})
	}
	return v
}

var defaultVocabulary = sync.OnceValue(func() *Vocabulary {
	return New(ToolNames, ParamNames)
})

// Default returns the process-wide vocabulary built from ToolNames and ParamNames.
func Default() *Vocabulary {
	return defaultVocabulary()
}

// OpenTag returns "<name>".
func OpenTag[T ~string](name T) string {
	return "<" + string(name) + ">"
}

// CloseTag returns "</name>".
func CloseTag[T ~string](name T) string {
	return "</" + string(name) + ">"
}

// EndsWithAt reports whether tag occurs in buf ending exactly at byte offset i.
func EndsWithAt(buf []byte, tag string, i int) bool {
	start := i - len(tag) + 1
	if start < 0 || i >= len(buf) {
		return false
	}
	return string(buf[start:i+1]) == tag
}

// ToolEndingAt returns the tool whose open tag ends at offset i.
func (v *Vocabulary) ToolEndingAt(buf []byte, i int) (ToolName, bool) {
	if i < 0 || i >= len(buf) || buf[i] != '>' {
		return "", false
	}
	for _, entry := range v.tools {
		if EndsWithAt(buf, entry.tag, i) {
			return entry.name, true
		}
	}
	return "", false
}

// ParamEndingAt returns the parameter whose open tag ends at offset i.
func (v *Vocabulary) ParamEndingAt(buf []byte, i int) (ParamName, bool) {
	if i < 0 || i >= len(buf) || buf[i] != '>' {
		return "", false
	}
	for _, entry := range v.params {
		if EndsWithAt(buf, entry.tag, i) {
			return entry.name, true
		}
	}
	return "", false
}

// PendingToolTag returns the offset of a trailing "<..." in text that is a
// strict prefix of some tool open tag, or -1. Such a suffix may still turn
// into a tool call once more input arrives.
func (v *Vocabulary) PendingToolTag(text string) int {
	i := strings.LastIndexByte(text, '<')
	if i < 0 {
		return -1
	}
	suffix := text[i:]
	for _, entry := range v.tools {
		if len(suffix) < len(entry.tag) && strings.HasPrefix(entry.tag, suffix) {
			return i
		}
	}
	return -1
}

// IsTool reports whether name is in the tool vocabulary.
func (v *Vocabulary) IsTool(name string) bool {
	_, ok := v.toolSet[ToolName(name)]
	return ok
}

// IsParam reports whether name is in the parameter vocabulary.
func (v *Vocabulary) IsParam(name string) bool {
	_, ok := v.paramSet[ParamName(name)]
	return ok
}

// Tools returns the registered tool names in registration order.
func (v *Vocabulary) Tools() []ToolName {
	out := make([]ToolName, 0, len(v.tools))
	for _, entry := range v.tools {
		out = append(out, entry.name)
	}
	return out
}

// Params returns the registered parameter names in registration order.
func (v *Vocabulary) Params() []ParamName {
	out := make([]ParamName, 0, len(v.params))
	for _, entry := range v.params {
		out = append(out, entry.name)
	}
	return out
}

// Canonical resolves a natively-structured tool name, including aliases,
// against the vocabulary.
func (v *Vocabulary) Canonical(name string) (ToolName, bool) {
	name = strings.TrimSpace(name)
	if v.IsTool(name) {
		return ToolName(name), true
	}
	if target, ok := aliases[name]; ok && v.IsTool(string(target)) {
		return target, true
	}
	return "", false
}
