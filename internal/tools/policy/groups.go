package policy

// ToolGroups defines named groups of tools for easier policy configuration.
// Group names use the "group:" prefix to distinguish them from tool names.
var ToolGroups = map[string][]string{
	// Filesystem tools - read/write/modify files
	"group:fs": {"read", "write", "edit", "apply_patch"},

	// Web tools - search and fetch from the web
	"group:web": {"websearch", "webfetch", "web_search", "web_fetch"},

	// Execution tools - run sandboxed code
	"group:runtime": {"exec", "execute_code"},

	// All built-in tools
	"group:builtin": {
		"read", "write", "edit", "apply_patch",
		"websearch", "webfetch", "web_search", "web_fetch",
		"exec", "execute_code",
	},

	// Read-only tools - safe tools that don't modify state
	"group:readonly": {
		"read",
		"websearch", "webfetch", "web_search", "web_fetch",
	},
}

// ToolProfiles defines pre-configured tool sets for common use cases.
var ToolProfiles = map[string]*Policy{
	"coding": {
		Profile: ProfileCoding,
		Allow:   []string{"group:fs", "group:runtime", "group:web"},
	},
	"readonly": {
		Allow: []string{"group:readonly"},
	},
	"full": {
		Profile: ProfileFull,
	},
	"minimal": {
		Profile: ProfileMinimal,
		Allow:   []string{"status"},
	},
}

// ExpandGroups expands group references in a tool list to their constituent
// tools. Group references are expanded, direct tool names pass through
// unchanged, and results are deduplicated.
func ExpandGroups(items []string) []string {
	var result []string
	seen := make(map[string]bool)

	for _, item := range items {
		if tools, ok := ToolGroups[item]; ok {
			for _, tool := range tools {
				if !seen[tool] {
					seen[tool] = true
					result = append(result, tool)
				}
			}
			continue
		}

		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}

	return result
}

// GetProfilePolicy returns the policy for a named profile, or nil if it
// doesn't exist.
func GetProfilePolicy(name string) *Policy {
	return ToolProfiles[name]
}

// ListGroups returns all available group names.
func ListGroups() []string {
	groups := make([]string, 0, len(ToolGroups))
	for name := range ToolGroups {
		groups = append(groups, name)
	}
	return groups
}

// ListProfiles returns all available profile names.
func ListProfiles() []string {
	profiles := make([]string, 0, len(ToolProfiles))
	for name := range ToolProfiles {
		profiles = append(profiles, name)
	}
	return profiles
}

// IsGroup returns true if the name is a valid group reference.
func IsGroup(name string) bool {
	_, ok := ToolGroups[name]
	return ok
}

// GetGroupTools returns the tools in a group, or nil if the group doesn't exist.
func GetGroupTools(name string) []string {
	tools, ok := ToolGroups[name]
	if !ok {
		return nil
	}
	result := make([]string, len(tools))
	copy(result, tools)
	return result
}

func init() {
	for name, tools := range ToolGroups {
		DefaultGroups[name] = tools
	}
}
