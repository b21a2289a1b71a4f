package datasource

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Repository organises data files as root/<project>/<file> and keeps named
// shortcuts to files and directories that strategies refer to often.
type Repository struct {
	fs       afero.Fs
	root     string
	projects []string
	project  string
	file     string

	specialFiles map[string]string
	specialDirs  map[string]string
}

// NewRepository lists the projects under root and selects project when it
// is not empty.
func NewRepository(fs afero.Fs, root, project, file string) (*Repository, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	infos, err := afero.ReadDir(fs, root)
	if err != nil {
		return nil, fmt.Errorf("list projects in %s: %w", root, err)
	}
	r := &Repository{
		fs:           fs,
		root:         root,
		file:         file,
		specialFiles: map[string]string{},
		specialDirs:  map[string]string{},
	}
	for _, fi := range infos {
		if fi.IsDir() {
			r.projects = append(r.projects, fi.Name())
		}
	}
	sort.Strings(r.projects)
	if strings.TrimSpace(project) != "" {
		if err := r.SelectProject(project); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Repository) Root() string       { return r.root }
func (r *Repository) Projects() []string { return append([]string(nil), r.projects...) }
func (r *Repository) Project() string    { return r.project }
func (r *Repository) File() string       { return r.file }

func (r *Repository) SelectProject(name string) error {
	for _, p := range r.projects {
		if p == name {
			r.project = name
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownProject, name)
}

func (r *Repository) SetFile(name string) { r.file = name }

func (r *Repository) ProjectPath() string { return filepath.Join(r.root, r.project) }

// FilePath resolves the current file inside the current project.
func (r *Repository) FilePath() (string, error) {
	if r.file == "" {
		return "", fmt.Errorf("%w: no file selected", ErrNotFound)
	}
	p := filepath.Join(r.root, r.project, r.file)
	if ok, err := afero.Exists(r.fs, p); err != nil || !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return p, nil
}

func (r *Repository) MarkSpecialFile(key, path string)      { r.specialFiles[key] = path }
func (r *Repository) MarkSpecialDirectory(key, path string) { r.specialDirs[key] = path }

func (r *Repository) SpecialFile(key string) (string, bool) {
	p, ok := r.specialFiles[key]
	return p, ok
}

func (r *Repository) SpecialDirectory(key string) (string, bool) {
	p, ok := r.specialDirs[key]
	return p, ok
}
