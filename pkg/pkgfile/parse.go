// SPDX-License-Identifier: MPL-2.0

package pkgfile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/ini.v1"
)

// Section names of the definition header.
const (
	SectionMain          = "main"
	SectionVersions      = "versions"
	SectionAliases       = "aliases"
	SectionRequires      = "requires"
	SectionSubs          = "subs"
	SectionSystemAliases = "system-aliases"
)

// Options tunes Parse.
type Options struct {
	// MaxAliasHops bounds alias chains. Zero means DefaultMaxAliasHops.
	MaxAliasHops int
}

var iniOptions = ini.LoadOptions{
	SpaceBeforeInlineComment: true,
	IgnoreContinuation:       true,
	AllowBooleanKeys:         true,
	KeyValueDelimiters:       "=:",
}

// Parse reads a definition from its raw text. name is the package name
// (the file's base name without Extension).
func Parse(name, path, fingerprint string, text []byte, opts Options) (*Definition, error) {
	if !ValidName(name) {
		return nil, definitionErr(name, path, "invalid package name %q", name)
	}
	header, body, bodyLine, found, closed := splitHeader(string(text))
	if !found {
		return nil, definitionErr(name, path, "missing ''' header")
	}
	if !closed {
		return nil, definitionErr(name, path, "unterminated header")
	}

	f, err := ini.LoadSources(iniOptions, []byte(quoteBracketKeys(header)))
	if err != nil {
		return nil, &DefinitionError{Package: name, Path: path, Reason: "malformed header", Err: err}
	}

	d := &Definition{
		Name:        name,
		Path:        path,
		Fingerprint: fingerprint,
		Aliases:     map[string]string{},
		Body:        body,
		BodyLine:    bodyLine,
	}
	if err := d.readMain(f); err != nil {
		return nil, err
	}
	if err := d.readVersions(f); err != nil {
		return nil, err
	}
	d.readAliases(f)
	if d.Requires, err = d.readRows(f, SectionRequires); err != nil {
		return nil, err
	}
	if d.Subs, err = d.readRows(f, SectionSubs); err != nil {
		return nil, err
	}
	d.readSystemAliases(f)

	if err := d.validateAliases(opts.MaxAliasHops); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Definition) readMain(f *ini.File) error {
	sec, err := f.GetSection(SectionMain)
	if err != nil {
		return nil
	}
	d.ExecutablePath = sec.Key("executable-path").String()
	d.DefaultVersion = sec.Key("default-version").String()
	if pattern := sec.Key("version-regex").String(); pattern != "" {
		re, err := regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			return &DefinitionError{Package: d.Name, Path: d.Path, Reason: "invalid version-regex", Err: err}
		}
		d.VersionRegex = re
		d.VersionPattern = pattern
	}
	if raw := sec.Key("versions-from-regex").String(); raw != "" {
		on, err := strconv.ParseBool(raw)
		if err != nil {
			return &DefinitionError{Package: d.Name, Path: d.Path, Reason: "invalid versions-from-regex", Err: err}
		}
		d.VersionsFromRegex = on
	}
	if d.VersionsFromRegex && d.VersionRegex == nil {
		return definitionErr(d.Name, d.Path, "versions-from-regex requires version-regex")
	}
	return nil
}

func (d *Definition) readVersions(f *ini.File) error {
	sec, err := f.GetSection(SectionVersions)
	if err != nil {
		if d.VersionsFromRegex {
			return nil
		}
		return definitionErr(d.Name, d.Path, "no [versions] section")
	}
	for _, k := range sec.Keys() {
		v := k.Name()
		if !ValidVersionToken(v) {
			d.Warnings = append(d.Warnings, fmt.Sprintf("skipping invalid version %q", v))
			continue
		}
		d.Versions = append(d.Versions, v)
	}
	if len(d.Versions) == 0 && !d.VersionsFromRegex {
		return definitionErr(d.Name, d.Path, "[versions] lists no valid version")
	}
	return nil
}

func (d *Definition) readAliases(f *ini.File) {
	sec, err := f.GetSection(SectionAliases)
	if err != nil {
		return
	}
	for _, k := range sec.Keys() {
		d.Aliases[k.Name()] = strings.TrimSpace(k.String())
		d.AliasOrder = append(d.AliasOrder, k.Name())
	}
}

func (d *Definition) readRows(f *ini.File, section string) ([]Row, error) {
	sec, err := f.GetSection(section)
	if err != nil {
		return nil, nil
	}
	rows := make([]Row, 0, len(sec.Keys()))
	for _, k := range sec.Keys() {
		glob := k.Name()
		if !doublestar.ValidatePattern(glob) {
			return nil, definitionErr(d.Name, d.Path, "[%s]: invalid version glob %q", section, glob)
		}
		specs, err := ParseSpecList(k.String())
		if err != nil {
			return nil, &DefinitionError{Package: d.Name, Path: d.Path, Reason: "[" + section + "]", Err: err}
		}
		rows = append(rows, Row{Glob: glob, Specs: specs})
	}
	return rows, nil
}

func (d *Definition) readSystemAliases(f *ini.File) {
	sec, err := f.GetSection(SectionSystemAliases)
	if err != nil {
		return
	}
	for _, k := range sec.Keys() {
		version := strings.TrimSpace(k.String())
		if version == "" || version == "true" {
			version = k.Name()
		}
		d.SystemAlias = append(d.SystemAlias, SystemAlias{Suffix: k.Name(), Version: version})
	}
}

func (d *Definition) validateAliases(maxHops int) error {
	for _, alias := range d.AliasOrder {
		_, ok, err := d.Expand(alias, maxHops)
		if err != nil {
			return err
		}
		if !ok {
			return definitionErr(d.Name, d.Path, "alias %q points at unknown version %q", alias, d.Aliases[alias])
		}
	}
	if d.DefaultVersion != "" {
		if _, ok, err := d.Expand(d.DefaultVersion, maxHops); err != nil {
			return err
		} else if !ok {
			return definitionErr(d.Name, d.Path, "default-version %q is not a version or alias", d.DefaultVersion)
		}
	}
	return nil
}

// quoteBracketKeys wraps keys that start with '[' (version globs such as
// "[56].*") in backquotes so the ini reader does not take them for sections.
func quoteBracketKeys(header string) string {
	lines := strings.Split(header, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "[") {
			continue
		}
		end := strings.Index(trimmed, "]")
		if end < 0 {
			continue
		}
		rest := strings.TrimSpace(trimmed[end+1:])
		if rest == "" || strings.HasPrefix(rest, "#") || strings.HasPrefix(rest, ";") {
			continue
		}
		eq := strings.IndexAny(trimmed, "=:")
		if eq <= end {
			continue
		}
		lines[i] = "`" + strings.TrimSpace(trimmed[:eq]) + "` =" + trimmed[eq+1:]
	}
	return strings.Join(lines, "\n")
}
