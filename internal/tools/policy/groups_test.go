package policy

import (
	"slices"
	"testing"
)

func TestExpandGroups(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		contains []string // tools that should be present
		excludes []string // tools that should NOT be present
	}{
		{
			name:     "expand single group",
			input:    []string{"group:fs"},
			contains: []string{"read", "write", "edit", "apply_patch"},
		},
		{
			name:     "expand runtime group",
			input:    []string{"group:runtime"},
			contains: []string{"exec", "execute_code"},
		},
		{
			name:     "expand multiple groups",
			input:    []string{"group:fs", "group:web"},
			contains: []string{"read", "write", "edit", "websearch", "webfetch"},
		},
		{
			name:     "pass through direct tool names",
			input:    []string{"custom_tool", "another_tool"},
			contains: []string{"custom_tool", "another_tool"},
		},
		{
			name:     "deduplicate results",
			input:    []string{"group:fs", "read", "write"},
			contains: []string{"read", "write", "edit", "apply_patch"},
		},
		{
			name:     "empty input",
			input:    []string{},
			contains: []string{},
		},
		{
			name:     "unknown group passed through",
			input:    []string{"group:unknown"},
			contains: []string{"group:unknown"},
		},
		{
			name:     "readonly group",
			input:    []string{"group:readonly"},
			contains: []string{"read", "websearch"},
			excludes: []string{"write", "edit", "exec"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExpandGroups(tt.input)

			for _, expected := range tt.contains {
				if !slices.Contains(result, expected) {
					t.Errorf("expected %q to be in result %v", expected, result)
				}
			}

			for _, excluded := range tt.excludes {
				if slices.Contains(result, excluded) {
					t.Errorf("expected %q to NOT be in result %v", excluded, result)
				}
			}
		})
	}
}

func TestExpandGroupsDeduplication(t *testing.T) {
	input := []string{"group:fs", "read", "group:fs"}
	result := ExpandGroups(input)

	count := 0
	for _, tool := range result {
		if tool == "read" {
			count++
		}
	}

	if count != 1 {
		t.Errorf("expected 'read' to appear exactly once, got %d times in %v", count, result)
	}
}

func TestGetProfilePolicy(t *testing.T) {
	tests := []struct {
		name        string
		profile     string
		expectNil   bool
		expectAllow []string
	}{
		{
			name:        "coding profile",
			profile:     "coding",
			expectNil:   false,
			expectAllow: []string{"group:fs", "group:runtime"},
		},
		{
			name:        "readonly profile",
			profile:     "readonly",
			expectNil:   false,
			expectAllow: []string{"group:readonly"},
		},
		{
			name:        "full profile",
			profile:     "full",
			expectNil:   false,
			expectAllow: nil,
		},
		{
			name:      "unknown profile",
			profile:   "nonexistent",
			expectNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := GetProfilePolicy(tt.profile)

			if tt.expectNil {
				if policy != nil {
					t.Errorf("expected nil policy for profile %q", tt.profile)
				}
				return
			}

			if policy == nil {
				t.Fatalf("expected non-nil policy for profile %q", tt.profile)
			}

			for _, expected := range tt.expectAllow {
				if !slices.Contains(policy.Allow, expected) {
					t.Errorf("expected %q in allow list for profile %q, got %v", expected, tt.profile, policy.Allow)
				}
			}
		})
	}
}

func TestIsGroup(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"valid fs group", "group:fs", true},
		{"valid runtime group", "group:runtime", true},
		{"valid readonly group", "group:readonly", true},
		{"invalid group", "group:unknown", false},
		{"regular tool name", "read", false},
		{"empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsGroup(tt.input)
			if result != tt.expected {
				t.Errorf("IsGroup(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestGetGroupTools(t *testing.T) {
	tests := []struct {
		name       string
		group      string
		expectNil  bool
		expectLen  int
		expectTool string
	}{
		{
			name:       "get fs tools",
			group:      "group:fs",
			expectNil:  false,
			expectLen:  4,
			expectTool: "read",
		},
		{
			name:      "unknown group",
			group:     "group:nonexistent",
			expectNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetGroupTools(tt.group)

			if tt.expectNil {
				if result != nil {
					t.Errorf("expected nil for group %q", tt.group)
				}
				return
			}

			if result == nil {
				t.Fatalf("expected non-nil result for group %q", tt.group)
			}

			if len(result) != tt.expectLen {
				t.Errorf("expected %d tools, got %d: %v", tt.expectLen, len(result), result)
			}

			if !slices.Contains(result, tt.expectTool) {
				t.Errorf("expected tool %q in result %v", tt.expectTool, result)
			}
		})
	}
}

func TestGetGroupToolsReturnsCopy(t *testing.T) {
	original := GetGroupTools("group:fs")
	if original == nil {
		t.Fatal("expected non-nil result for group:fs")
	}

	original[0] = "modified"

	fresh := GetGroupTools("group:fs")
	if fresh[0] == "modified" {
		t.Error("GetGroupTools should return a copy, not the original slice")
	}
}

func TestListGroups(t *testing.T) {
	groups := ListGroups()

	expectedGroups := []string{
		"group:fs",
		"group:runtime",
		"group:web",
		"group:readonly",
	}

	for _, expected := range expectedGroups {
		if !slices.Contains(groups, expected) {
			t.Errorf("expected %q in group list %v", expected, groups)
		}
	}
}

func TestListProfiles(t *testing.T) {
	profiles := ListProfiles()

	expectedProfiles := []string{
		"coding",
		"readonly",
		"full",
		"minimal",
	}

	for _, expected := range expectedProfiles {
		if !slices.Contains(profiles, expected) {
			t.Errorf("expected %q in profile list %v", expected, profiles)
		}
	}
}

func TestResolverWithGroups(t *testing.T) {
	resolver := NewResolver()

	policy := &Policy{
		Allow: []string{"group:fs", "websearch"},
	}

	allowedTools := []string{"read", "write", "edit", "apply_patch", "websearch"}
	for _, tool := range allowedTools {
		if !resolver.IsAllowed(policy, tool) {
			t.Errorf("expected %q to be allowed", tool)
		}
	}

	deniedTools := []string{"exec", "execute_code"}
	for _, tool := range deniedTools {
		if resolver.IsAllowed(policy, tool) {
			t.Errorf("expected %q to be denied", tool)
		}
	}
}

func TestResolverWithProfile(t *testing.T) {
	resolver := NewResolver()

	policy := &Policy{
		Profile: ProfileCoding,
	}

	allowedTools := []string{"read", "write", "exec"}
	for _, tool := range allowedTools {
		if !resolver.IsAllowed(policy, tool) {
			t.Errorf("coding profile: expected %q to be allowed", tool)
		}
	}
}

func TestResolverWithProfileAndDeny(t *testing.T) {
	resolver := NewResolver()

	policy := &Policy{
		Profile: ProfileFull,
		Deny:    []string{"exec"},
	}

	if resolver.IsAllowed(policy, "exec") {
		t.Error("expected exec to be denied even with full profile")
	}

	if !resolver.IsAllowed(policy, "read") {
		t.Error("expected read to be allowed with full profile")
	}
}

func TestResolverWithGroupDeny(t *testing.T) {
	resolver := NewResolver()

	policy := &Policy{
		Profile: ProfileFull,
		Deny:    []string{"group:runtime"},
	}

	deniedTools := []string{"exec", "execute_code"}
	for _, tool := range deniedTools {
		if resolver.IsAllowed(policy, tool) {
			t.Errorf("expected %q to be denied by group:runtime deny", tool)
		}
	}

	if !resolver.IsAllowed(policy, "read") {
		t.Error("expected read to be allowed")
	}
}

func TestToolGroupsConsistency(t *testing.T) {
	builtinTools := GetGroupTools("group:builtin")
	if builtinTools == nil {
		t.Fatal("group:builtin should exist")
	}

	groupsToCheck := []string{"group:fs", "group:web", "group:runtime"}

	for _, group := range groupsToCheck {
		tools := GetGroupTools(group)
		for _, tool := range tools {
			if !slices.Contains(builtinTools, tool) {
				t.Errorf("group:builtin should contain %q from %s", tool, group)
			}
		}
	}
}

func TestReadonlyGroupNoModifyTools(t *testing.T) {
	readonlyTools := GetGroupTools("group:readonly")
	if readonlyTools == nil {
		t.Fatal("group:readonly should exist")
	}

	modifyTools := []string{"write", "edit", "exec", "apply_patch"}

	for _, tool := range modifyTools {
		if slices.Contains(readonlyTools, tool) {
			t.Errorf("group:readonly should NOT contain modification tool %q", tool)
		}
	}

	readTools := []string{"read", "websearch"}
	for _, tool := range readTools {
		if !slices.Contains(readonlyTools, tool) {
			t.Errorf("group:readonly should contain read tool %q", tool)
		}
	}
}
