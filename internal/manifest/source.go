package manifest

import (
	"fmt"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"
)

// SourceKind identifies where rows of a source are read from.
type SourceKind int

// SourceKind constants.
const (
	SourceFile SourceKind = iota
	SourceHTTP
)

func (k SourceKind) String() string {
	switch k {
	case SourceFile:
		return "file"
	case SourceHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// Response formats accepted from files and HTTP endpoints.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Source describes exactly one row provider.
type Source struct {
	File *FileSource `yaml:"file,omitempty"`
	HTTP *HTTPSource `yaml:"http,omitempty"`
}

// NamedSource is a source whose rows can be referenced as <name>.<column>
// by the templates of later sources.
type NamedSource struct {
	Name   string `yaml:"name"`
	Source `yaml:",inline"`
}

// FileSource reads a .csv or .json file relative to the manifest directory.
type FileSource struct {
	Path string `yaml:"path"`
}

// HTTPSource fetches one or more URLs.
type HTTPSource struct {
	URL          StringList        `yaml:"url"`
	Method       string            `yaml:"method,omitempty"`
	ResponseType string            `yaml:"responseType,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty"`
	Params       map[string]string `yaml:"params,omitempty"`
	Body         map[string]string `yaml:"body,omitempty"`
}

// Kind reports which provider the source declares. Exactly one must be set.
func (s Source) Kind() (SourceKind, error) {
	switch {
	case s.File != nil && s.HTTP != nil:
		return 0, fmt.Errorf("exactly one value for input is required, got both file and http")
	case s.File != nil:
		return SourceFile, nil
	case s.HTTP != nil:
		return SourceHTTP, nil
	default:
		return 0, fmt.Errorf("exactly one value for input is required, got none")
	}
}

func (s Source) clone() Source {
	var c Source
	if s.File != nil {
		f := *s.File
		c.File = &f
	}
	if s.HTTP != nil {
		h := *s.HTTP
		h.URL = slices.Clone(s.HTTP.URL)
		h.Headers = maps.Clone(s.HTTP.Headers)
		h.Params = maps.Clone(s.HTTP.Params)
		h.Body = maps.Clone(s.HTTP.Body)
		c.HTTP = &h
	}
	return c
}

// StringList accepts either a single string or a list of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*l = list
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}
