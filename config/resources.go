package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ZaguanLabs/transctl"
)

// Output layouts.
const (
	// LayoutByLanguage keeps the file name and relies on the [source] tag
	// in the path to separate languages (locales/[source]/app.json).
	LayoutByLanguage = "by-language"
	// LayoutAlongSided writes the translation next to the source, prefixing
	// the file name with the language (index.html -> de_index.html).
	LayoutAlongSided = "along-sided"
)

// ResourceDir is one resources.<type>.dirs entry. Path is a glob that may
// contain "**" and the [source] tag, which stands for the source language
// when matching and for each target language in the output.
type ResourceDir struct {
	Path   string `mapstructure:"path"`
	Layout string `mapstructure:"layout"`
}

func (d ResourceDir) validate() error {
	if strings.TrimSpace(d.Path) == "" {
		return &transctl.ConfigError{Message: "resource entry has no path"}
	}
	switch d.Layout {
	case "", LayoutAlongSided:
	case LayoutByLanguage:
		if !strings.Contains(d.Path, transctl.DefaultTag) {
			return &transctl.ConfigError{Message: fmt.Sprintf("layout %q requires %s in path %q", d.Layout, transctl.DefaultTag, d.Path)}
		}
	default:
		return &transctl.ConfigError{Message: fmt.Sprintf("invalid layout %q", d.Layout)}
	}
	return nil
}

// Resources resolves every configured resource entry against the files on
// disk. Types are visited in transctl.ResourceTypes order and matches are
// sorted, so the result is stable between runs.
func (c *Config) Resources() ([]transctl.Resource, error) {
	var out []transctl.Resource
	for _, typ := range transctl.ResourceTypes {
		for name, section := range c.ResourceDirs {
			if t, _ := transctl.ParseResourceType(name); t != typ {
				continue
			}
			for _, dir := range section.Dirs {
				found, err := ResolveDir(c.root, typ, dir, c.Locale.Source)
				if err != nil {
					return nil, err
				}
				out = append(out, found...)
			}
		}
	}
	return c.dropOutputs(out), nil
}

// dropOutputs removes resources whose input is the output of another
// resource, such as de_index.html matched by an along-sided "*.html".
func (c *Config) dropOutputs(resources []transctl.Resource) []transctl.Resource {
	outputs := make(map[string]bool)
	for _, r := range resources {
		for _, t := range c.Targets() {
			outputs[filepath.Clean(r.OutputFor(t))] = true
		}
	}

	kept := resources[:0]
	for _, r := range resources {
		if !outputs[filepath.Clean(r.Input)] {
			kept = append(kept, r)
		}
	}
	return kept
}

// Pairs returns every (input, output) pair the configuration describes.
func (c *Config) Pairs() ([]transctl.OutputPair, error) {
	resources, err := c.Resources()
	if err != nil {
		return nil, err
	}
	var pairs []transctl.OutputPair
	for _, r := range resources {
		for _, t := range c.Targets() {
			pairs = append(pairs, transctl.OutputPair{Input: r.Input, Output: r.OutputFor(t)})
		}
	}
	return pairs, nil
}

// ResolveDir expands dir relative to root. Files are matched with the tag
// replaced by sourceLang; each output template has the tag put back at the
// same places. A pattern whose fixed prefix does not exist yields nothing.
func ResolveDir(root string, typ transctl.ResourceType, dir ResourceDir, sourceLang string) ([]transctl.Resource, error) {
	if err := dir.validate(); err != nil {
		return nil, err
	}

	pattern := dir.Path
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(root, pattern)
	}
	pattern = filepath.ToSlash(pattern)

	re, err := globRegexp(pattern, sourceLang)
	if err != nil {
		return nil, &transctl.ConfigError{Message: fmt.Sprintf("invalid resource path %q", dir.Path), Cause: err}
	}
	tagged := strings.Contains(pattern, transctl.DefaultTag)

	base := filepath.FromSlash(globBase(pattern, sourceLang))
	var matches []string
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == base {
				return filepath.SkipAll
			}
			return err
		}
		if d.Type().IsRegular() && re.MatchString(filepath.ToSlash(p)) {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return nil, &transctl.ConfigError{Message: fmt.Sprintf("resolve resource path %q", dir.Path), Cause: err}
	}
	sort.Strings(matches)

	resources := make([]transctl.Resource, 0, len(matches))
	for _, input := range matches {
		output := retag(re, filepath.ToSlash(input))
		if dir.Layout == LayoutAlongSided || (dir.Layout == "" && !tagged) {
			output = path.Join(path.Dir(output), transctl.DefaultTag+"_"+path.Base(output))
		}
		resources = append(resources, transctl.Resource{
			Type:   typ,
			Input:  input,
			Output: filepath.FromSlash(output),
			Tag:    transctl.DefaultTag,
		})
	}
	return resources, nil
}

// retag replaces every captured tag position in p with the tag.
func retag(re *regexp.Regexp, p string) string {
	idx := re.FindStringSubmatchIndex(p)
	if len(idx) <= 2 {
		return p
	}

	var b strings.Builder
	last := 0
	for g := 2; g+1 < len(idx); g += 2 {
		start, end := idx[g], idx[g+1]
		if start < 0 {
			continue
		}
		b.WriteString(p[last:start])
		b.WriteString(transctl.DefaultTag)
		last = end
	}
	b.WriteString(p[last:])
	return b.String()
}

// globRegexp compiles a slash separated glob into an anchored regexp. "*"
// and "?" stay within one path segment, "**/" spans any number of
// directories, "[...]" is a character class and each tag becomes a
// capturing group matching sourceLang literally.
func globRegexp(pattern, sourceLang string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); {
		rest := pattern[i:]
		switch {
		case strings.HasPrefix(rest, transctl.DefaultTag):
			b.WriteString("(" + regexp.QuoteMeta(sourceLang) + ")")
			i += len(transctl.DefaultTag)
		case strings.HasPrefix(rest, "**/"):
			b.WriteString("(?:.*/)?")
			i += 3
		case strings.HasPrefix(rest, "**"):
			b.WriteString(".*")
			i += 2
		case rest[0] == '*':
			b.WriteString("[^/]*")
			i++
		case rest[0] == '?':
			b.WriteString("[^/]")
			i++
		case rest[0] == '[':
			end := strings.IndexByte(rest[1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				i++
				continue
			}
			class := rest[1 : end+1]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i += end + 2
		default:
			b.WriteString(regexp.QuoteMeta(rest[:1]))
			i++
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// globBase returns the longest leading directory of pattern free of
// wildcards, with tags replaced by sourceLang.
func globBase(pattern, sourceLang string) string {
	segments := strings.Split(pattern, "/")
	var fixed []string
	for _, seg := range segments {
		plain := strings.ReplaceAll(seg, transctl.DefaultTag, "")
		if strings.ContainsAny(plain, "*?[") {
			break
		}
		fixed = append(fixed, strings.ReplaceAll(seg, transctl.DefaultTag, sourceLang))
	}
	base := strings.Join(fixed, "/")
	if base == "" {
		if strings.HasPrefix(pattern, "/") {
			return "/"
		}
		return "."
	}
	return base
}
