package output

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/jamesainslie/binmin/pkg/binmin/types"
)

// document is the structure shared by the json and yaml formatters.
type document struct {
	Groups  []Group   `json:"groups" yaml:"groups"`
	Deleted []Deleted `json:"deleted" yaml:"deleted"`
	Stats   docStats  `json:"stats" yaml:"stats"`
	Meta    docMeta   `json:"meta" yaml:"meta"`
}

type docStats struct {
	types.Stats      `json:",inline" yaml:",inline"`
	Unique           int    `json:"unique" yaml:"unique"`
	BytesDeleted     int64  `json:"bytes_deleted" yaml:"bytes_deleted"`
	ReclaimableHuman string `json:"reclaimable_human" yaml:"reclaimable_human"`
}

type docMeta struct {
	Source       string   `json:"source" yaml:"source"`
	State        string   `json:"state" yaml:"state"`
	Strict       bool     `json:"strict" yaml:"strict"`
	Trash        bool     `json:"trash" yaml:"trash"`
	Duration     string   `json:"duration" yaml:"duration"`
	Diff         []string `json:"diff,omitempty" yaml:"diff,omitempty"`
	NotFound     []string `json:"not_found,omitempty" yaml:"not_found,omitempty"`
	ManifestPath string   `json:"manifest_path,omitempty" yaml:"manifest_path,omitempty"`
	ShadowPath   string   `json:"shadow_path,omitempty" yaml:"shadow_path,omitempty"`
}

func buildDocument(r *Report) document {
	groups := r.Groups
	if groups == nil {
		groups = []Group{}
	}
	deleted := r.Deleted
	if deleted == nil {
		deleted = []Deleted{}
	}
	return document{
		Groups:  groups,
		Deleted: deleted,
		Stats: docStats{
			Stats:            r.Stats,
			Unique:           r.Unique,
			BytesDeleted:     r.DeletedBytes(),
			ReclaimableHuman: types.FormatSize(r.Stats.BytesReclaimable),
		},
		Meta: docMeta{
			Source:       r.Source,
			State:        r.State,
			Strict:       r.Strict,
			Trash:        r.Trash,
			Duration:     r.Duration.Round(time.Millisecond).String(),
			Diff:         r.Diff,
			NotFound:     r.NotFound,
			ManifestPath: r.ManifestPath,
			ShadowPath:   r.ShadowPath,
		},
	}
}

// JSONFormatter formats the report as one indented JSON object.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildDocument(r))
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

var _ Formatter = (*JSONFormatter)(nil)
