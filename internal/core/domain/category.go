package domain

import (
	"path/filepath"
	"strings"
)

type Format string

const (
	FormatMarkup     Format = "markup"
	FormatRecordList Format = "record_list"
)

type Language string

const (
	LanguageNL Language = "nl"
	LanguageEN Language = "en"
	LanguageDE Language = "de"
)

// Category is one recognized (format, language) export layout and the file
// names expected inside its archive.
type Category struct {
	ID         string   `json:"id" yaml:"id"`
	Format     Format   `json:"format" yaml:"format"`
	Language   Language `json:"language" yaml:"language"`
	KnownFiles []string `json:"known_files" yaml:"known_files"`
	DataFile   string   `json:"data_file,omitempty" yaml:"data_file,omitempty"`
}

// ExtractionFile returns the archive member holding the interactions.
func (c Category) ExtractionFile() string {
	if c.DataFile != "" {
		return c.DataFile
	}
	ext := formatExtension(c.Format)
	for _, name := range c.KnownFiles {
		if strings.EqualFold(filepath.Ext(name), ext) {
			return name
		}
	}
	return ""
}

func formatExtension(format Format) string {
	switch format {
	case FormatMarkup:
		return ".html"
	case FormatRecordList:
		return ".json"
	default:
		return ""
	}
}
