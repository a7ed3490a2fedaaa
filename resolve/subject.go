package resolve

import (
	"path"
	"slices"
	"strings"
)

// Usage summarizes how a script touches a path.
type Usage struct {
	Reads       int      `yaml:"reads,omitempty"        expr:"reads"`
	Writes      int      `yaml:"writes,omitempty"       expr:"writes"`
	Appends     int      `yaml:"appends,omitempty"      expr:"appends"`
	InLoop      bool     `yaml:"in_loop,omitempty"      expr:"in_loop"`
	InCondition bool     `yaml:"in_condition,omitempty" expr:"in_condition"`
	Guarded     bool     `yaml:"guarded,omitempty"      expr:"guarded"`
	Monitored   bool     `yaml:"monitored,omitempty"    expr:"monitored"`
	Sourced     bool     `yaml:"sourced,omitempty"      expr:"sourced"`
	Executed    bool     `yaml:"executed,omitempty"     expr:"executed"`
	Commands    []string `yaml:"commands,omitempty"     expr:"commands"`
}

// Merge folds o into u.
func (u *Usage) Merge(o Usage) {
	u.Reads += o.Reads
	u.Writes += o.Writes
	u.Appends += o.Appends
	u.InLoop = u.InLoop || o.InLoop
	u.InCondition = u.InCondition || o.InCondition
	u.Guarded = u.Guarded || o.Guarded
	u.Monitored = u.Monitored || o.Monitored
	u.Sourced = u.Sourced || o.Sourced
	u.Executed = u.Executed || o.Executed

	for _, c := range o.Commands {
		if !slices.Contains(u.Commands, c) {
			u.Commands = append(u.Commands, c)
		}
	}

	slices.Sort(u.Commands)
}

// Modified reports whether the script writes or appends to the path.
func (u Usage) Modified() bool { return u.Writes > 0 || u.Appends > 0 }

// Pattern names the dominant access pattern.
func (u Usage) Pattern() string {
	switch {
	case u.Monitored:
		return "monitor"
	case u.Sourced:
		return "source"
	case u.Reads > 0 && u.Modified():
		return "read-write"
	case u.Appends > 0 && u.Writes == 0:
		return "append"
	case u.Writes > 0:
		return "write-only"
	case u.Reads > 0:
		return "read-only"
	}

	return "unknown"
}

// Subject is the input to classification rules. Field names double as the
// identifiers available to custom rule expressions.
type Subject struct {
	Path   string `expr:"path"`
	Base   string `expr:"base"`
	Ext    string `expr:"ext"`
	Dir    string `expr:"dir"`
	Local  bool   `expr:"local"`
	Exists bool   `expr:"exists"`
	Size   int64  `expr:"size"`
	Usage  Usage  `expr:"usage"`
}

// NewSubject describes path p relative to the directory holding the root
// script.
func NewSubject(p, scriptDir string, exists bool, size int64, u Usage) *Subject {
	return &Subject{
		Path:   p,
		Base:   path.Base(p),
		Ext:    strings.ToLower(path.Ext(p)),
		Dir:    path.Dir(p),
		Local:  within(scriptDir, p),
		Exists: exists,
		Size:   size,
		Usage:  u,
	}
}

// within reports whether p is dir or lies below it.
func within(dir, p string) bool {
	if dir == "" {
		return false
	}

	if dir == "/" {
		return strings.HasPrefix(p, "/")
	}

	return p == dir || strings.HasPrefix(p, dir+"/")
}
