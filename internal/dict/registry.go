package dict

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fixtools/fix-log-analyzer/internal/fix"
)

// Registry holds the loaded dictionaries keyed by version. The load phase
// must complete before any lookup or detection call; after that the
// registry is read-only and safe for concurrent readers without locking.
type Registry struct {
	dictionaries   map[string]*Dictionary
	defaultVersion string
	logger         *zap.Logger
}

// NewRegistry creates an empty registry with the given fallback version.
func NewRegistry(defaultVersion string, logger *zap.Logger) *Registry {
	return &Registry{
		dictionaries:   make(map[string]*Dictionary),
		defaultVersion: defaultVersion,
		logger:         logger,
	}
}

// LoadDir loads every *.xml dictionary in dir. A missing directory is the
// one fatal condition; individual document failures are logged and the
// load proceeds with whatever parsed successfully.
func (r *Registry) LoadDir(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("fix specification directory %s not available: %w", dir, err)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.xml"))
	if err != nil {
		return fmt.Errorf("failed to list fix specification directory %s: %w", dir, err)
	}

	for _, path := range paths {
		if err := r.Load(path); err != nil {
			r.logger.Error("error loading fix dictionary",
				zap.String("path", path),
				zap.Error(err),
			)
		}
	}

	r.logger.Info("loaded fix dictionaries", zap.Int("count", len(r.dictionaries)))
	return nil
}

// Load parses one dictionary document and registers it by its version.
func (r *Registry) Load(path string) error {
	d, err := LoadDictionary(path)
	if err != nil {
		return err
	}
	r.dictionaries[d.Version] = d
	r.logger.Info("loaded fix dictionary",
		zap.String("path", path),
		zap.String("version", d.Version),
	)
	return nil
}

// DefaultVersion returns the configured fallback version.
func (r *Registry) DefaultVersion() string {
	return r.defaultVersion
}

// SupportedVersions lists the loaded dictionary versions, sorted.
func (r *Registry) SupportedVersions() []string {
	versions := make([]string, 0, len(r.dictionaries))
	for v := range r.dictionaries {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

// FieldName resolves a tag to its field name, first in the given
// version's dictionary, then in any loaded dictionary, else the tag
// itself.
func (r *Registry) FieldName(tag, version string) string {
	if version == "" {
		version = r.defaultVersion
	}

	if d, ok := r.dictionaries[version]; ok {
		if name, ok := d.FieldName(tag); ok {
			return name
		}
	}

	for _, d := range r.dictionaries {
		if name, ok := d.FieldName(tag); ok {
			return name
		}
	}

	return tag
}

// MessageTypeName resolves a message type code to its name, with the same
// fallback chain as FieldName, else the "Unknown (<code>)" sentinel.
func (r *Registry) MessageTypeName(msgType, version string) string {
	if version == "" {
		version = r.defaultVersion
	}

	if d, ok := r.dictionaries[version]; ok {
		if name, ok := d.MessageTypeName(msgType); ok {
			return name
		}
	}

	for _, d := range r.dictionaries {
		if name, ok := d.MessageTypeName(msgType); ok {
			return name
		}
	}

	return UnknownMessageTypeName(msgType)
}

// UnknownMessageTypeName is the sentinel returned for unresolvable
// message type codes.
func UnknownMessageTypeName(msgType string) string {
	return fmt.Sprintf("Unknown (%s)", msgType)
}

// IsFieldRequired reports whether a tag is required for a message type in
// the given version.
func (r *Registry) IsFieldRequired(tag, msgType, version string) bool {
	if version == "" {
		version = r.defaultVersion
	}

	if d, ok := r.dictionaries[version]; ok {
		return d.IsFieldRequired(tag, msgType)
	}
	return false
}

// IsValidValue reports whether a value is legal for a tag. Absence of an
// enumeration is not a violation.
func (r *Registry) IsValidValue(tag, value, version string) bool {
	if version == "" {
		version = r.defaultVersion
	}

	if d, ok := r.dictionaries[version]; ok {
		if values := d.EnumValues(tag); values != nil {
			_, ok := values[value]
			return ok
		}
	}

	return true
}

// DetectVersion determines the FIX version of a parsed field set.
//
// For FIXT.1.1 the session layer is version-agnostic, so the application
// version comes from DefaultApplVerID (1137), falling back to ApplVerID
// (1128), mapped through the standard ApplVerID table. A BeginString
// naming a loaded dictionary is used verbatim. Anything else falls back
// to the configured default with a warning.
func (r *Registry) DetectVersion(fields map[string]string) string {
	beginString, ok := fields[fix.TagBeginString]
	if !ok {
		return r.defaultVersion
	}

	if beginString == fix.BeginStringFIXT {
		if applVerID, ok := fields[fix.TagDefaultApplVerID]; ok {
			return r.mapApplVerID(applVerID)
		}
		if applVerID, ok := fields[fix.TagApplVerID]; ok {
			return r.mapApplVerID(applVerID)
		}
		r.logger.Warn("FIXT.1.1 message without DefaultApplVerID or ApplVerID, using default",
			zap.String("default", r.defaultVersion),
		)
		return r.defaultVersion
	}

	if _, ok := r.dictionaries[beginString]; ok {
		return beginString
	}
	if strings.HasPrefix(beginString, "FIX.") {
		// Recognizable but unloaded version, still worth warning about.
		r.logger.Warn("unsupported fix version, using default",
			zap.String("begin_string", beginString),
			zap.String("default", r.defaultVersion),
		)
		return r.defaultVersion
	}

	r.logger.Warn("unknown fix version, using default",
		zap.String("begin_string", beginString),
		zap.String("default", r.defaultVersion),
	)
	return r.defaultVersion
}

func (r *Registry) mapApplVerID(applVerID string) string {
	switch applVerID {
	case "4":
		return "FIX.4.2"
	case "5":
		return "FIX.4.3"
	case "6":
		return "FIX.4.4"
	case "7":
		return "FIX.5.0"
	case "8":
		return "FIX.5.0SP1"
	case "9":
		return "FIX.5.0SP2"
	default:
		r.logger.Warn("unknown ApplVerID, using default",
			zap.String("appl_ver_id", applVerID),
			zap.String("default", r.defaultVersion),
		)
		return r.defaultVersion
	}
}
