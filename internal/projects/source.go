// Package projects gives read-only access to the files of integration projects.
// Each project lives in a top-level directory named after its id.
package projects

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	// MaxFiles is the maximum number of files returned for one project
	MaxFiles = 10 * 1000

	// MaxTotalSize is the maximum combined size of the files of one project
	MaxTotalSize = 100 * 1024 * 1024
)

// ErrProjectNotFound is returned when the project directory does not exist
var ErrProjectNotFound = errors.New("project not found")

// File is one project file. Path is relative to the project directory and uses
// forward slashes.
type File struct {
	Path    string
	Content []byte
}

// GitSource reads project files from the HEAD commit of a repository
type GitSource struct {
	repo *git.Repository
}

// NewGitSource wraps an opened repository
func NewGitSource(repo *git.Repository) *GitSource {
	return &GitSource{repo: repo}
}

// OpenGitSource opens the repository at dir
func OpenGitSource(dir string) (*GitSource, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository %s: %w", dir, err)
	}
	return NewGitSource(repo), nil
}

// ProjectFiles returns the committed files of a project sorted by path
func (s *GitSource) ProjectFiles(ctx context.Context, projectID string) ([]File, error) {
	ref, err := s.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD reference: %w", err)
	}
	commit, err := s.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit object: %w", err)
	}
	root, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	tree, err := root.Tree(projectID)
	if err != nil {
		if errors.Is(err, object.ErrDirectoryNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
		}
		return nil, fmt.Errorf("failed to get tree of %s: %w", projectID, err)
	}

	var (
		files []File
		total int64
	)
	err = tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(files) >= MaxFiles {
			return fmt.Errorf("project %s has more than %d files", projectID, MaxFiles)
		}
		total += f.Size
		if total > MaxTotalSize {
			return fmt.Errorf("project %s exceeds %d bytes", projectID, MaxTotalSize)
		}

		content, err := readBlob(f)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		files = append(files, File{Path: f.Name, Content: content})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortFiles(files)
	return files, nil
}

func readBlob(f *object.File) ([]byte, error) {
	r, err := f.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// DirSource reads project files from a working directory, including
// uncommitted changes
type DirSource struct {
	fs billy.Filesystem
}

// NewDirSource reads projects below the root of fs
func NewDirSource(fs billy.Filesystem) *DirSource {
	return &DirSource{fs: fs}
}

// ProjectFiles returns the files below the project directory sorted by path.
// Hidden entries such as .git are skipped.
func (s *DirSource) ProjectFiles(ctx context.Context, projectID string) ([]File, error) {
	if _, err := s.fs.Stat(projectID); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", projectID, err)
	}

	var (
		files []File
		total int64
	)
	err := util.Walk(s.fs, projectID, func(name string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if name != projectID && filepath.Base(name)[0] == '.' {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if len(files) >= MaxFiles {
			return fmt.Errorf("project %s has more than %d files", projectID, MaxFiles)
		}
		total += info.Size()
		if total > MaxTotalSize {
			return fmt.Errorf("project %s exceeds %d bytes", projectID, MaxTotalSize)
		}

		content, err := util.ReadFile(s.fs, name)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		rel, err := filepath.Rel(projectID, name)
		if err != nil {
			return err
		}
		files = append(files, File{Path: filepath.ToSlash(rel), Content: content})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortFiles(files)
	return files, nil
}

func sortFiles(files []File) {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
}
