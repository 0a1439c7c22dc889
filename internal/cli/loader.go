package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue/token"

	"github.com/roach88/xpbd/internal/compiler"
	"github.com/roach88/xpbd/internal/ir"
)

// LoadMode controls how errors are handled during scene loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadedScene is one compiled scene and the file it came from.
type LoadedScene struct {
	Path  string
	Scene *ir.Scene
}

// LoadResult contains the scenes loaded from a file or directory.
type LoadResult struct {
	Scenes    []LoadedScene
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred during scene loading.
type LoadError struct {
	Code    string
	Message string
	File    string
	Field   string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.File != "" {
		if e.Field != "" {
			return fmt.Sprintf("%s: %s: %s: %s", e.File, e.Code, e.Field, e.Message)
		}
		return fmt.Sprintf("%s: %s: %s", e.File, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Line returns the CUE source line, or 0.
func (e *LoadError) Line() int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// LoadScenes compiles and validates the scene at path, or every .cue file
// under path if it is a directory. Files compile independently; a
// directory is not one CUE package.
//
// The result is nil only when nothing could be attempted (missing path, no
// files). With LoadModeFailFast the first failing file stops loading.
func LoadScenes(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scene path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing scene path: %v", err)}}
	}

	files := []string{path}
	if info.IsDir() {
		files, err = FindCUEFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
		if len(files) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}
		}
	}

	result := &LoadResult{FileCount: len(files)}
	var errs []error
	for _, file := range files {
		scene, fileErrs := loadScene(file)
		if len(fileErrs) > 0 {
			errs = append(errs, fileErrs...)
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Scenes = append(result.Scenes, LoadedScene{Path: file, Scene: scene})
	}
	return result, errs
}

// LoadScene loads exactly one scene file, failing fast.
func LoadScene(path string) (*ir.Scene, error) {
	result, errs := LoadScenes(path, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if len(result.Scenes) != 1 {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("%s holds %d scenes, want one file", path, len(result.Scenes))}
	}
	return result.Scenes[0].Scene, nil
}

func loadScene(file string) (*ir.Scene, []error) {
	if _, err := os.Stat(file); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, File: file, Message: err.Error()}}
	}
	scene, err := compiler.CompileFile(file)
	if err != nil {
		return nil, []error{convertCompileError(err, file)}
	}
	if scene.Name == "" {
		scene.Name = sceneName(file)
	}
	problems := compiler.ValidateScene(scene)
	if len(problems) == 0 {
		return scene, nil
	}
	errs := make([]error, len(problems))
	for i, p := range problems {
		errs[i] = &LoadError{Code: p.Code, File: file, Field: p.Field, Message: p.Message}
	}
	return nil, errs
}

// sceneName derives a scene name from its file name.
func sceneName(file string) string {
	base := filepath.Base(file)
	return base[:len(base)-len(filepath.Ext(base))]
}

// FindCUEFiles walks the directory and returns all .cue file paths in
// lexical order.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, file string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			File:    file,
			Field:   compileErr.Field,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeLoadFailed,
		File:    file,
		Message: err.Error(),
	}
}

// Error code constants - unified across all CLI commands. Scene validation
// codes (E2xx) come from the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // Scene file unreadable
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE evaluation or schema failure
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStore       = "E008" // Trace database error
	ErrCodeUnknownRun  = "E009" // Run reference did not resolve
	ErrCodeBadQuery    = "E010" // Query could not be compiled
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "cue":
		return ErrCodeBuildFailed
	case "settings":
		return compiler.ErrInvalidSettings
	case "stitches":
		return compiler.ErrInvalidStitch
	case "zones":
		return compiler.ErrInvalidZone
	default:
		return ErrCodeGeneric
	}
}
