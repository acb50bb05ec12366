package aggregates

import (
	"reflect"
	"testing"

	"contentforge/domain/core/valueobjects"
	pkgerrors "contentforge/pkg/errors"
)

func testKey(t *testing.T) WorkspaceKey {
	t.Helper()
	key, err := NewWorkspaceKey("acme", "blog", "")
	if err != nil {
		t.Fatalf("NewWorkspaceKey failed: %v", err)
	}
	return key
}

func mustPath(t *testing.T, raw string) valueobjects.NodePath {
	t.Helper()
	path, err := valueobjects.NewNodePath(raw)
	if err != nil {
		t.Fatalf("NewNodePath(%q) failed: %v", raw, err)
	}
	return path
}

func TestWorkspaceKeyObjectKey(t *testing.T) {
	key, err := NewWorkspaceKey("acme", "blog", "summer")
	if err != nil {
		t.Fatalf("NewWorkspaceKey failed: %v", err)
	}
	if key.ObjectKey() != "workspaces/acme/blog/summer.json" {
		t.Errorf("unexpected object key: %q", key.ObjectKey())
	}

	noCampaign := testKey(t)
	if noCampaign.ObjectKey() != "workspaces/acme/blog/default.json" {
		t.Errorf("unexpected default object key: %q", noCampaign.ObjectKey())
	}
}

func TestWorkspaceKeyValidation(t *testing.T) {
	if _, err := NewWorkspaceKey("", "blog", ""); err == nil {
		t.Error("expected error for empty organization")
	}
	if _, err := NewWorkspaceKey("acme", "", ""); err == nil {
		t.Error("expected error for empty project")
	}
}

func TestCreateFileMaterializesParents(t *testing.T) {
	ws := NewWorkspace(testKey(t))

	_, err := ws.CreateFile(mustPath(t, "blog/guides/seo-basics"), "seo basics")
	if err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}

	want := []string{"blog", "blog/guides", "blog/guides/seo-basics"}
	if got := ws.Paths(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected paths %v, got %v", want, got)
	}

	dir, err := ws.Resolve(mustPath(t, "blog/guides"))
	if err != nil {
		t.Fatalf("Resolve parent failed: %v", err)
	}
	if !dir.IsDirectory() {
		t.Error("materialized parent should be a directory")
	}
}

func TestCreateFileConflicts(t *testing.T) {
	ws := NewWorkspace(testKey(t))
	path := mustPath(t, "blog/post")

	if _, err := ws.CreateFile(path, "kw"); err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	if _, err := ws.CreateFile(path, "kw"); !pkgerrors.IsType(err, pkgerrors.ErrorTypeConflict) {
		t.Errorf("expected conflict for duplicate path, got %v", err)
	}

	// A file cannot be a parent of another node.
	if _, err := ws.CreateFile(mustPath(t, "blog/post/nested"), "kw"); !pkgerrors.IsType(err, pkgerrors.ErrorTypeConflict) {
		t.Errorf("expected conflict for file parent, got %v", err)
	}
}

func TestResolveMissingIsNotFound(t *testing.T) {
	ws := NewWorkspace(testKey(t))
	_, err := ws.Resolve(mustPath(t, "nowhere"))
	if !pkgerrors.IsType(err, pkgerrors.ErrorTypeNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestWriteMetadataMergesPartially(t *testing.T) {
	ws := NewWorkspace(testKey(t))
	path := mustPath(t, "blog/post")
	if _, err := ws.CreateFile(path, "target keyword"); err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}

	if err := ws.WriteMetadata(path, map[string]string{"outline": "# Outline"}); err != nil {
		t.Fatalf("WriteMetadata failed: %v", err)
	}

	node, err := ws.Resolve(path)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if node.Outline() != "# Outline" {
		t.Errorf("expected outline to be set, got %q", node.Outline())
	}
	if node.PrimaryKeyword() != "target keyword" {
		t.Error("untouched fields must survive a partial merge")
	}

	if err := ws.WriteMetadata(path, map[string]string{"bogus": "x"}); err == nil {
		t.Error("expected error for unknown metadata field")
	}
}

func TestWriteContentSetsBodyAndStatusAtomically(t *testing.T) {
	ws := NewWorkspace(testKey(t))
	path := mustPath(t, "blog/post")
	if _, err := ws.CreateFile(path, "kw"); err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	if err := ws.WriteMetadata(path, map[string]string{"outline": "# Plan"}); err != nil {
		t.Fatalf("WriteMetadata failed: %v", err)
	}
	node, _ := ws.Resolve(path)
	if err := node.BeginWriting("wf-1"); err != nil {
		t.Fatalf("BeginWriting failed: %v", err)
	}

	if err := ws.WriteContent(path, "article body", valueobjects.StatusScheduled); err != nil {
		t.Fatalf("WriteContent failed: %v", err)
	}
	node, _ = ws.Resolve(path)
	if node.Body() != "article body" {
		t.Errorf("unexpected body: %q", node.Body())
	}
	if node.Status() != valueobjects.StatusScheduled {
		t.Errorf("unexpected status: %s", node.Status())
	}

	if err := ws.WriteContent(path, "body", valueobjects.StatusPlanning); err == nil {
		t.Error("expected error for non-terminal writing status")
	}
}

func TestChildren(t *testing.T) {
	ws := NewWorkspace(testKey(t))
	for _, p := range []string{"blog/b-post", "blog/a-post", "blog/nested/deep"} {
		if _, err := ws.CreateFile(mustPath(t, p), "kw"); err != nil {
			t.Fatalf("CreateFile(%q) failed: %v", p, err)
		}
	}

	children := ws.Children(mustPath(t, "blog"))
	got := make([]string, len(children))
	for i, c := range children {
		got[i] = c.Path().String()
	}
	want := []string{"blog/a-post", "blog/b-post", "blog/nested"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected children %v, got %v", want, got)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ws := NewWorkspace(testKey(t))
	path := mustPath(t, "blog/guides/seo-basics")
	if _, err := ws.CreateFile(path, "seo basics"); err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	if err := ws.WriteMetadata(path, map[string]string{"outline": "# Plan"}); err != nil {
		t.Fatalf("WriteMetadata failed: %v", err)
	}
	seeded, _ := ws.Resolve(path)
	if err := seeded.BeginWriting("wf-1"); err != nil {
		t.Fatalf("BeginWriting failed: %v", err)
	}
	if err := ws.WriteContent(path, "the article", valueobjects.StatusPendingReview); err != nil {
		t.Fatalf("WriteContent failed: %v", err)
	}

	data, err := ws.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	restored, err := Import(data)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if !reflect.DeepEqual(restored.Paths(), ws.Paths()) {
		t.Errorf("path sets differ: %v vs %v", restored.Paths(), ws.Paths())
	}

	node, err := restored.Resolve(path)
	if err != nil {
		t.Fatalf("Resolve after import failed: %v", err)
	}
	if node.Body() != "the article" ||
		node.Outline() != "# Plan" ||
		node.PrimaryKeyword() != "seo basics" ||
		node.WorkflowID() != "wf-1" ||
		node.Status() != valueobjects.StatusPendingReview {
		t.Error("imported node lost state")
	}

	// A second export of the restored tree is byte-identical apart from
	// nothing: exports are deterministic.
	again, err := restored.Export()
	if err != nil {
		t.Fatalf("second Export failed: %v", err)
	}
	if string(again) != string(data) {
		t.Error("export is not deterministic across a round trip")
	}
}

func TestImportRejectsUnknownVersion(t *testing.T) {
	if _, err := Import([]byte(`{"version":99,"key":{"organization_id":"a","project_id":"b"},"nodes":[]}`)); err == nil {
		t.Error("expected error for unsupported snapshot version")
	}
}
