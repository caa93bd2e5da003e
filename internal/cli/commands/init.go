package commands

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/rdm/internal/cli/output"
	"github.com/leapstack-labs/rdm/internal/manifest"
)

//go:embed all:templates
var templateFS embed.FS

// nameToken is replaced by the project name in the scaffolded manifest.
const nameToken = "$name"

// InputTypes lists the scaffolds init can create.
var InputTypes = []string{"file", "http"}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init <name> <input-type>",
		Short: "Scaffold a new migration project",
		Long: `Create a directory <name> holding an rdm.json manifest that reads its
input from a file or an HTTP endpoint and writes a table called <name>.

The destination must not exist or must be an empty directory.`,
		Example: `  # A migration reading users.csv
  rdm init users file

  # A migration reading a JSON API
  rdm init users http`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: InputTypes,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContextWithoutEngine(cmd)
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			return runInit(cc.Renderer, cwd, args[0], args[1])
		},
	}
	return cmd
}

func runInit(r *output.Renderer, cwd, name, inputType string) error {
	if !slices.Contains(InputTypes, inputType) {
		return fmt.Errorf("unknown input type %q (expected one of: %s)", inputType, strings.Join(InputTypes, ", "))
	}

	dir := filepath.Join(cwd, name)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", name, err)
	}
	empty, err := isDirEmpty(dir)
	if err != nil {
		return err
	}
	if !empty {
		return fmt.Errorf("destination '%s' already exists and it is not an empty directory", name)
	}

	files, err := copyTemplate(inputType, dir, map[string]string{nameToken: filepath.Base(name)})
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	for _, f := range files {
		r.Muted("  created " + filepath.Join(name, f))
	}
	r.Success(fmt.Sprintf("RDM project '%s' created", name))
	r.Println("")
	r.Println("Next steps:")
	r.Printf("  1. Edit %s\n", filepath.Join(name, manifest.FileName))
	r.Printf("  2. Run 'rdm plan %s' to review the SQL\n", name)
	r.Printf("  3. Run 'rdm apply %s' with DATABASE_URL set\n", name)
	return nil
}

// copyTemplate copies an embedded template into targetDir, applying the
// replacements to the manifest. It returns the written paths.
func copyTemplate(templateName, targetDir string, replacements map[string]string) ([]string, error) {
	root := path.Join("templates", templateName)
	var written []string

	err := fs.WalkDir(templateFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
		if rel == "" {
			return nil
		}
		target := filepath.Join(targetDir, filepath.FromSlash(rel))
		if d.IsDir() {
			return os.MkdirAll(target, 0750)
		}

		content, err := templateFS.ReadFile(p)
		if err != nil {
			return err
		}
		if rel == manifest.FileName {
			s := string(content)
			for old, repl := range replacements {
				s = strings.ReplaceAll(s, old, repl)
			}
			content = []byte(s)
		}
		if err := os.WriteFile(target, content, 0600); err != nil {
			return err
		}
		written = append(written, rel)
		return nil
	})
	return written, err
}

func isDirEmpty(dir string) (bool, error) {
	f, err := os.Open(dir) //nolint:gosec // directory chosen by the user
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}
