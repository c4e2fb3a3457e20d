package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/contentq/internal/compiler"
	"github.com/roach88/contentq/internal/cql"
	"github.com/roach88/contentq/internal/schema"
)

// LoadError represents an error that occurred while loading the field registry.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadRegistry loads the CUE field registry in dir.
func LoadRegistry(dir string) (*schema.Registry, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("fields directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing fields directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	reg, err := schema.CompileRegistry(value)
	if err != nil {
		var defErr *schema.DefinitionError
		if errors.As(err, &defErr) {
			return nil, &LoadError{
				Code:    ErrCodeInvalidField,
				Message: fmt.Sprintf("%s: %s", defErr.Field, defErr.Message),
				Pos:     defErr.Pos,
			}
		}
		return nil, &LoadError{Code: ErrCodeInvalidField, Message: err.Error()}
	}
	return reg, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	// Field registry errors
	ErrCodeInvalidField = "E101" // Invalid field or content type declaration

	// Query compilation errors
	ErrCodeUnsupported  = "E201" // Construct with no index translation
	ErrCodeNonConstant  = "E202" // Argument that must be a constant is not
	ErrCodeUnknownField = "E203" // Field missing from the registry
	ErrCodeUnknownType  = "E204" // Host type with no content-type name
	ErrCodeProtocol     = "E205" // Expression shape that breaks the query protocol
	ErrCodeFoldFailed   = "E206" // Constant subexpression failed to evaluate

	// Query input errors
	ErrCodeInvalidDocument = "E301" // Malformed query document
	ErrCodeInvalidText     = "E302" // Malformed supplementary query text
	ErrCodeInvalidFlag     = "E303" // Invalid directive flag
)

// MapCompileErrorCode maps a compilation failure to a CLI error code.
func MapCompileErrorCode(err error) string {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		switch compileErr.Code {
		case compiler.ErrCodeUnsupported:
			return ErrCodeUnsupported
		case compiler.ErrCodeNonConstant:
			return ErrCodeNonConstant
		case compiler.ErrCodeUnknownField:
			return ErrCodeUnknownField
		case compiler.ErrCodeUnknownType:
			return ErrCodeUnknownType
		case compiler.ErrCodeProtocol:
			return ErrCodeProtocol
		case compiler.ErrCodeFoldFailed:
			return ErrCodeFoldFailed
		}
	}
	if cql.IsParseError(err) {
		if errors.Is(err, schema.ErrUnknownField) {
			return ErrCodeUnknownField
		}
		return ErrCodeInvalidText
	}
	if errors.Is(err, schema.ErrUnknownField) {
		return ErrCodeUnknownField
	}
	return ErrCodeGeneric
}
