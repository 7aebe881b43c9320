package main

import (
	"bytes"
	"encoding/json"
	"falken/internal/adapters/wire"
	"falken/pkg/diag"
	"falken/pkg/domain"
	"fmt"
	"strings"
)

// lineKind classifies report lines for styling.
type lineKind int

const (
	kindText lineKind = iota
	kindHeading
	kindAttribute
	kindWarning
	kindWire
)

type line struct {
	text string
	kind lineKind
}

// report is the rendered description of one brain.
type report struct {
	name  string
	lines []line
}

// describe builds the containers of s and reports their attributes, the
// readiness of a fresh spec and optionally the positional wire form.
func describe(s domain.BrainSchema, showWire bool) (report, error) {
	spec, err := domain.NewBrainSpec(s, domain.WithLogger(diag.Discard()))
	if err != nil {
		return report{}, err
	}
	r := report{name: spec.Name()}
	r.add(kindHeading, "Brain %s", spec.Name())
	r.add(kindText, "")

	for _, ent := range spec.Observations.Entities() {
		r.add(kindHeading, "entity %s", ent.Name())
		for _, a := range ent.Attributes() {
			r.add(kindAttribute, "  %s", describeField(a.Spec()))
		}
	}
	r.add(kindHeading, "actions")
	if spec.Actions.Len() == 0 {
		r.add(kindText, "  (none)")
	}
	for _, a := range spec.Actions.Attributes() {
		r.add(kindAttribute, "  %s", describeField(a.Spec()))
	}

	r.add(kindText, "")
	r.add(kindHeading, "readiness")
	warnings := spec.CheckObservations()
	if w := spec.CheckActions(); w != "" {
		warnings = append(warnings, w)
	}
	for _, w := range warnings {
		r.add(kindWarning, "  %s", w)
	}
	if len(warnings) == 0 {
		r.add(kindText, "  nothing to set")
	}

	if showWire {
		msg, err := wire.EncodeBrainSchema(s, domain.AlphabeticalRemapper{})
		if err != nil {
			return report{}, fmt.Errorf("encode %s: %w", s.Name, err)
		}
		data, err := wire.Marshal(msg, wire.FormatJSON)
		if err != nil {
			return report{}, err
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, data, "", "  "); err != nil {
			return report{}, err
		}
		r.add(kindText, "")
		r.add(kindHeading, "wire form")
		for _, l := range strings.Split(pretty.String(), "\n") {
			r.add(kindWire, "%s", l)
		}
	}
	return r, nil
}

func (r *report) add(kind lineKind, format string, args ...any) {
	r.lines = append(r.lines, line{text: fmt.Sprintf(format, args...), kind: kind})
}

func (r report) String() string {
	var b strings.Builder
	for _, l := range r.lines {
		b.WriteString(l.text)
		b.WriteByte('\n')
	}
	return b.String()
}

func describeField(f domain.FieldSpec) string {
	var detail string
	switch {
	case f.Number != nil:
		detail = fmt.Sprintf("[%g, %g]", f.Number.Min, f.Number.Max)
	case f.Categorical != nil:
		detail = "{" + strings.Join(f.Categorical.Categories, ", ") + "}"
	case f.Feelers != nil:
		detail = fmt.Sprintf("count=%d length=%g fov=%g thickness=%g", f.Feelers.Count, f.Feelers.Length, f.Feelers.FOVAngle, f.Feelers.Thickness)
		if len(f.Feelers.IDs) > 0 {
			detail += " ids={" + strings.Join(f.Feelers.IDs, ", ") + "}"
		}
	case f.Joystick != nil:
		detail = fmt.Sprintf("%s entity=%s frame=%s", f.Joystick.AxesMode, f.Joystick.ControlledEntity, f.Joystick.ControlFrame)
	}
	out := fmt.Sprintf("%-16s %s", f.Name, f.Type)
	if detail != "" {
		out += " " + detail
	}
	if f.Clamping {
		out += " clamped"
	}
	return out
}
