// TEST TYPE: Unit Test
// DEPENDENCIES: real filesystem via t.TempDir, afero memory filesystem
// PURPOSE: Test post-order cleanup, runtime path safety and idempotence

package cleaner

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"testing"

	"github.com/arthur-debert/distsync/pkg/errors"
	"github.com/arthur-debert/distsync/pkg/filesystem"
	"github.com/arthur-debert/distsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func makeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(f), 0644))
	}
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}

func TestClean(t *testing.T) {
	root := t.TempDir()
	makeTree(t, root,
		"plugins/a.jar",
		"plugins/stale.jar",
		"config/app.properties",
		"config/old/unused.properties",
		"workspace/logs/run.log",
		"workspace/junk.tmp",
		"empty/deeper/x",
	)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "touched-empty"), 0755))

	touched := types.NewTouchedFileSet()
	touched.Touch(filepath.Join(root, "plugins", "a.jar"))
	touched.Touch(filepath.Join(root, "config", "app.properties"))
	touched.Touch(filepath.Join(root, "touched-empty"))
	patterns := []types.RuntimePathPattern{types.MustCompileRuntimePath(`workspace/logs/.*`)}

	report, err := Clean(filesystem.NewOS(), root, touched.Freeze(), patterns, Options{})
	require.NoError(t, err)

	assert.True(t, exists(filepath.Join(root, "plugins", "a.jar")))
	assert.True(t, exists(filepath.Join(root, "config", "app.properties")))
	assert.True(t, exists(filepath.Join(root, "workspace", "logs", "run.log")))
	assert.True(t, exists(filepath.Join(root, "touched-empty")))
	assert.True(t, exists(root))

	assert.False(t, exists(filepath.Join(root, "plugins", "stale.jar")))
	assert.False(t, exists(filepath.Join(root, "config", "old")))
	assert.False(t, exists(filepath.Join(root, "workspace", "junk.tmp")))
	assert.False(t, exists(filepath.Join(root, "empty")))

	var deleted []string
	for _, e := range report.Deleted {
		deleted = append(deleted, e.Rel)
	}
	assert.ElementsMatch(t, []string{
		"plugins/stale.jar",
		"config/old/unused.properties",
		"config/old/",
		"workspace/junk.tmp",
		"empty/deeper/x",
		"empty/deeper/",
		"empty/",
	}, deleted)

	second, err := Clean(filesystem.NewOS(), root, touched, patterns, Options{})
	require.NoError(t, err)
	assert.Empty(t, second.Deleted)
}

func TestClean_RuntimeDirectoryChildrenStillEvaluated(t *testing.T) {
	root := t.TempDir()
	makeTree(t, root, "data/keep.db", "data/cache/blob")

	patterns := []types.RuntimePathPattern{
		types.MustCompileRuntimePath(`data/`),
		types.MustCompileRuntimePath(`data/keep\.db`),
	}
	report, err := Clean(filesystem.NewOS(), root, types.NewTouchedFileSet().Freeze(), patterns, Options{})
	require.NoError(t, err)

	assert.True(t, exists(filepath.Join(root, "data", "keep.db")))
	assert.False(t, exists(filepath.Join(root, "data", "cache")))

	reasons := map[string]string{}
	for _, e := range report.Kept {
		reasons[e.Rel] = e.Reason
	}
	assert.Equal(t, KeptRuntime, reasons["data/"])
	assert.Equal(t, KeptRuntime, reasons["data/keep.db"])
}

func TestClean_DoesNotFollowSymlinks(t *testing.T) {
	outside := t.TempDir()
	makeTree(t, outside, "precious/file.txt")
	root := t.TempDir()
	require.NoError(t, os.Symlink(filepath.Join(outside, "precious"), filepath.Join(root, "link")))

	_, err := Clean(filesystem.NewOS(), root, nil, nil, Options{})
	require.NoError(t, err)

	assert.False(t, exists(filepath.Join(root, "link")))
	assert.True(t, exists(filepath.Join(outside, "precious", "file.txt")))
}

func TestClean_DryRun(t *testing.T) {
	root := t.TempDir()
	makeTree(t, root, "a/b/c.txt", "d.txt")

	report, err := Clean(filesystem.NewOS(), root, nil, nil, Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Len(t, report.Deleted, 4)
	assert.True(t, exists(filepath.Join(root, "a", "b", "c.txt")))
	assert.True(t, exists(filepath.Join(root, "d.txt")))
}

func TestClean_InputErrors(t *testing.T) {
	root := t.TempDir()

	_, err := Clean(filesystem.NewOS(), root, types.NewTouchedFileSet(), nil, Options{})
	assert.True(t, errors.IsErrorCode(err, errors.ErrInternal), "unfrozen set is rejected")

	report, err := Clean(filesystem.NewOS(), filepath.Join(root, "missing"), nil, nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, report.Deleted)

	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	_, err = Clean(filesystem.NewOS(), file, nil, nil, Options{})
	assert.True(t, errors.IsErrorCode(err, errors.ErrCleanup))
}

var (
	segments        = []string{"a", "b", "logs", "tmp"}
	runtimeChoices  = []string{`logs/.*`, `.*\.lock`, `a/`, `b/tmp/.*`, `tmp/`}
	fileNameChoices = []string{"x.jar", "y.lock", "z.txt"}
)

func TestClean_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		const root = "/env"
		fsys := filesystem.NewMemory()
		if err := fsys.MkdirAll(root, 0755); err != nil {
			t.Fatal(err)
		}

		n := rapid.IntRange(0, 12).Draw(t, "files")
		var files []string
		for i := 0; i < n; i++ {
			depth := rapid.IntRange(0, 3).Draw(t, fmt.Sprintf("depth%d", i))
			parts := make([]string, 0, depth+1)
			for d := 0; d < depth; d++ {
				parts = append(parts, rapid.SampledFrom(segments).Draw(t, fmt.Sprintf("seg%d_%d", i, d)))
			}
			parts = append(parts, rapid.SampledFrom(fileNameChoices).Draw(t, fmt.Sprintf("name%d", i)))
			rel := path.Join(parts...)
			abs := path.Join(root, rel)
			if info, err := fsys.Stat(abs); err == nil && info.IsDir() {
				continue
			}
			if err := fsys.MkdirAll(path.Dir(abs), 0755); err != nil {
				continue
			}
			if err := fsys.WriteFile(abs, []byte(rel), 0644); err != nil {
				continue
			}
			files = append(files, rel)
		}

		touched := types.NewTouchedFileSet()
		for _, f := range files {
			if rapid.Bool().Draw(t, "touch "+f) {
				touched.Touch(path.Join(root, f))
			}
		}
		touched.Freeze()

		var patterns []types.RuntimePathPattern
		for _, expr := range runtimeChoices {
			if rapid.Bool().Draw(t, "pattern "+expr) {
				patterns = append(patterns, types.MustCompileRuntimePath(expr))
			}
		}

		before := listTree(t, fsys, root)
		if _, err := Clean(fsys, root, touched, patterns, Options{}); err != nil {
			t.Fatal(err)
		}
		after := map[string]bool{}
		for _, rel := range listTree(t, fsys, root) {
			after[rel] = true
		}

		for _, rel := range before {
			if types.MatchAny(patterns, rel) && !after[rel] {
				t.Fatalf("runtime path %s was deleted", rel)
			}
			if touched.Contains(path.Join(root, rel)) && !after[rel] {
				t.Fatalf("touched path %s was deleted", rel)
			}
		}

		second, err := Clean(fsys, root, touched, patterns, Options{})
		if err != nil {
			t.Fatal(err)
		}
		if len(second.Deleted) != 0 {
			t.Fatalf("second cleanup deleted %v", second.DeletedPaths())
		}
	})
}

// listTree returns every path below root, slash-separated, directories
// suffixed with "/".
func listTree(t *rapid.T, fsys types.FS, root string) []string {
	var out []string
	var walk func(dir, rel string)
	walk = func(dir, rel string) {
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			r := rel + e.Name()
			if e.IsDir() {
				r += "/"
				walk(path.Join(dir, e.Name()), r)
			}
			out = append(out, r)
		}
	}
	walk(root, "")
	sort.Strings(out)
	return out
}
