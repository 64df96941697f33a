package ownership

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/checksum"
)

func TestDecide(t *testing.T) {
	sum := checksum.String("installed")

	tests := []struct {
		name     string
		exists   bool
		actual   string
		baseline Baseline
		want     Result
	}{
		{"missing file, no record", false, "", nil, Result{Ownership: UserOwned}},
		{"missing file, with record", false, "", Checksum(sum), Result{Ownership: UserOwned}},
		{"present, no record", true, sum, nil, Result{Ownership: UserOwned, Exists: true}},
		{"present, empty baseline", true, sum, Checksum(""), Result{Ownership: UserOwned, Exists: true}},
		{"present, matches", true, sum, Checksum(sum), Result{Ownership: ToolPristine, Exists: true}},
		{"present, differs", true, checksum.String("edited"), Checksum(sum), Result{Ownership: ToolModified, Exists: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.exists, tt.actual, tt.baseline))
		})
	}
}

func TestClassify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.md")
	require.NoError(t, os.WriteFile(path, []byte("installed"), 0o644))

	r, err := Classify(path, Checksum(checksum.String("installed")))
	require.NoError(t, err)
	assert.Equal(t, Result{Ownership: ToolPristine, Exists: true}, r)

	require.NoError(t, os.WriteFile(path, []byte("edited by user"), 0o644))
	r, err = Classify(path, Checksum(checksum.String("installed")))
	require.NoError(t, err)
	assert.Equal(t, Result{Ownership: ToolModified, Exists: true}, r)

	r, err = Classify(filepath.Join(dir, "missing.md"), Checksum(checksum.String("installed")))
	require.NoError(t, err)
	assert.Equal(t, Result{Ownership: UserOwned}, r)
}

// Files never present in any record are user-owned whatever their content.
func TestClassify_UntrackedIsAlwaysUserOwned(t *testing.T) {
	dir := t.TempDir()
	for i, content := range []string{"", "abc", "---\nname: planner\n---\n", string(make([]byte, 4096))} {
		path := filepath.Join(dir, "f"+string(rune('a'+i)))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		r, err := Classify(path, nil)
		require.NoError(t, err)
		assert.Equal(t, UserOwned, r.Ownership)
		assert.True(t, r.Exists)
	}
}

func TestClassifyBatch(t *testing.T) {
	dir := t.TempDir()
	pristine := filepath.Join(dir, "pristine.md")
	modified := filepath.Join(dir, "modified.md")
	untracked := filepath.Join(dir, "untracked.md")
	missing := filepath.Join(dir, "missing.md")
	for _, p := range []string{pristine, untracked} {
		require.NoError(t, os.WriteFile(p, []byte("v1"), 0o644))
	}
	require.NoError(t, os.WriteFile(modified, []byte("v1 edited"), 0o644))

	v1 := Checksum(checksum.String("v1"))
	got, err := ClassifyBatch(t.Context(), []Request{
		{Path: pristine, Baseline: v1},
		{Path: modified, Baseline: v1},
		{Path: untracked},
		{Path: missing, Baseline: v1},
	}, 2)
	require.NoError(t, err)

	assert.Equal(t, map[string]Result{
		pristine:  {Ownership: ToolPristine, Exists: true},
		modified:  {Ownership: ToolModified, Exists: true},
		untracked: {Ownership: UserOwned, Exists: true},
		missing:   {Ownership: UserOwned},
	}, got)
}

func TestDeletableAndProtected(t *testing.T) {
	tests := []struct {
		r             Result
		deletable     bool
		deletableWith bool
		protected     bool
	}{
		{Result{Ownership: ToolPristine, Exists: true}, true, true, false},
		{Result{Ownership: ToolModified, Exists: true}, false, true, true},
		{Result{Ownership: UserOwned, Exists: true}, false, false, true},
		{Result{Ownership: UserOwned}, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.r.Ownership.String(), func(t *testing.T) {
			assert.Equal(t, tt.deletable, tt.r.Deletable(false))
			assert.Equal(t, tt.deletableWith, tt.r.Deletable(true))
			assert.Equal(t, tt.protected, tt.r.Protected())
		})
	}
}

func TestParseOwnership(t *testing.T) {
	tests := []struct {
		in      string
		want    Ownership
		wantErr bool
	}{
		{"user", UserOwned, false},
		{"ck", ToolPristine, false},
		{"ck-modified", ToolModified, false},
		{" Tool-Pristine ", ToolPristine, false},
		{"modified", ToolModified, false},
		{"somebody", UserOwned, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOwnership(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOwnershipJSON(t *testing.T) {
	in := struct {
		O Ownership `json:"ownership"`
	}{ToolModified}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ownership":"ck-modified"}`, string(data))

	var out struct {
		O Ownership `json:"ownership"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"ownership":"ck"}`), &out))
	assert.Equal(t, ToolPristine, out.O)

	_, err = json.Marshal(struct{ O Ownership }{Ownership(9)})
	assert.Error(t, err)
}
