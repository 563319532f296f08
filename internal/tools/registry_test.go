package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/weaver-ai/weaver/pkg/models"
)

func echoHandler(ctx context.Context, input json.RawMessage) (string, error) {
	return string(input), nil
}

func TestRegistry_RegisterGetList(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(models.ToolDescriptor{Name: "ping"}, echoHandler); err != nil {
		t.Fatalf("register: %v", err)
	}

	handler, desc, ok := r.Get("ping")
	if !ok {
		t.Fatal("expected ping to be registered")
	}
	if desc.Source != "builtin" {
		t.Errorf("expected default source builtin, got %q", desc.Source)
	}
	if handler == nil {
		t.Fatal("expected non-nil handler")
	}

	list := r.List(nil)
	if len(list) != 1 || list[0].Name != "ping" {
		t.Errorf("unexpected list: %v", list)
	}
}

func TestRegistry_RegisterDuplicateFails(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(models.ToolDescriptor{Name: "ping"}, echoHandler); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(models.ToolDescriptor{Name: "ping"}, echoHandler); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestRegistry_FreezeRejectsRegistration(t *testing.T) {
	r := NewRegistry()
	r.Freeze()
	if err := r.Register(models.ToolDescriptor{Name: "ping"}, echoHandler); err == nil {
		t.Fatal("expected registration on frozen registry to fail")
	}
}

func TestRegistry_ListFilter(t *testing.T) {
	r := NewRegistry()
	r.Register(models.ToolDescriptor{Name: "read"}, echoHandler)
	r.Register(models.ToolDescriptor{Name: "write"}, echoHandler)
	r.Freeze()

	readOnly := r.List(func(d models.ToolDescriptor) bool { return d.Name == "read" })
	if len(readOnly) != 1 || readOnly[0].Name != "read" {
		t.Errorf("unexpected filtered list: %v", readOnly)
	}
}

func TestRegistry_ValidateArgs(t *testing.T) {
	r := NewRegistry()
	schema := json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`)
	r.Register(models.ToolDescriptor{Name: "read", InputSchema: schema}, echoHandler)

	if err := r.ValidateArgs("read", json.RawMessage(`{"path":"a.txt"}`)); err != nil {
		t.Errorf("expected valid args to pass, got %v", err)
	}
	if err := r.ValidateArgs("read", json.RawMessage(`{}`)); err == nil {
		t.Error("expected missing required field to fail validation")
	}
	if err := r.ValidateArgs("unknown", json.RawMessage(`{}`)); err == nil {
		t.Error("expected unknown tool to fail validation")
	}
}

func TestStagingRegistry_SwapIn(t *testing.T) {
	r := NewRegistry()
	r.Register(models.ToolDescriptor{Name: "read"}, echoHandler)
	r.Freeze()

	staging := NewStagingRegistry()
	if err := staging.Stage(models.ToolDescriptor{Name: "mcp:server.tool", Source: "mcp:server"}, echoHandler); err != nil {
		t.Fatalf("stage: %v", err)
	}

	n := staging.SwapIn(r)
	if n != 1 {
		t.Errorf("expected 1 staged entry swapped, got %d", n)
	}

	_, _, ok := r.Get("mcp:server.tool")
	if !ok {
		t.Fatal("expected swapped-in tool to be present")
	}
	// Original entries survive the swap.
	if _, _, ok := r.Get("read"); !ok {
		t.Fatal("expected pre-existing tool to survive swap")
	}

	list := r.List(nil)
	if len(list) != 2 {
		t.Errorf("expected snapshot to include both tools, got %d", len(list))
	}
}

func TestStagingRegistry_SwapInOverwritesExisting(t *testing.T) {
	r := NewRegistry()
	r.Register(models.ToolDescriptor{Name: "tool", Description: "v1"}, echoHandler)
	r.Freeze()

	staging := NewStagingRegistry()
	staging.Stage(models.ToolDescriptor{Name: "tool", Description: "v2"}, echoHandler)
	staging.SwapIn(r)

	_, desc, _ := r.Get("tool")
	if desc.Description != "v2" {
		t.Errorf("expected swap-in to overwrite descriptor, got %q", desc.Description)
	}
}
