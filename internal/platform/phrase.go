package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// PhraseResolver expands user-entered folder phrases into directory names
type PhraseResolver struct {
	Now     func() time.Time
	Getenv  func(string) string
	HomeDir func() (string, error)

	// VolumeRoots are searched for "[LABEL]" prefixes
	VolumeRoots []string
}

// NewPhraseResolver creates a resolver using the process environment
func NewPhraseResolver() *PhraseResolver {
	user := os.Getenv("USER")
	return &PhraseResolver{
		Now:     time.Now,
		Getenv:  os.Getenv,
		HomeDir: os.UserHomeDir,
		VolumeRoots: []string{
			filepath.Join("/media", user),
			filepath.Join("/run/media", user),
			"/media",
			"/mnt",
			"/Volumes",
		},
	}
}

// ResolvePhrase expands phrase with the default resolver
func ResolvePhrase(phrase string) (string, error) {
	return NewPhraseResolver().Resolve(phrase)
}

var (
	percentVar = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_]*)%`)
	volumeRef  = regexp.MustCompile(`^\[([^\]]+)\](.*)$`)
)

// Resolve expands macros, environment variables, "~" and volume labels.
// An empty phrase resolves to an empty name. Unknown %NAME% macros that
// are not environment variables are kept literally.
func (r *PhraseResolver) Resolve(phrase string) (string, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return "", nil
	}

	now := r.Now()
	macros := map[string]string{
		"date":    now.Format("2006-01-02"),
		"time":    now.Format("150405"),
		"year":    now.Format("2006"),
		"month":   now.Format("01"),
		"day":     now.Format("02"),
		"weekday": now.Format("Monday"),
	}
	expanded := percentVar.ReplaceAllStringFunc(phrase, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := macros[strings.ToLower(name)]; ok {
			return v
		}
		if v := r.Getenv(name); v != "" {
			return v
		}
		return m
	})
	expanded = os.Expand(expanded, r.Getenv)

	if expanded == "~" || strings.HasPrefix(expanded, "~/") || strings.HasPrefix(expanded, `~\`) {
		home, err := r.HomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to expand ~ in %q: %w", phrase, err)
		}
		expanded = filepath.Join(home, expanded[1:])
	}

	if m := volumeRef.FindStringSubmatch(expanded); m != nil {
		dir, err := r.findVolume(m[1])
		if err != nil {
			return "", err
		}
		expanded = filepath.Join(dir, m[2])
	}

	return NormalizeDir(expanded), nil
}

func (r *PhraseResolver) findVolume(label string) (string, error) {
	for _, root := range r.VolumeRoots {
		candidate := filepath.Join(root, label)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
	}
	return "", &PathError{Path: "[" + label + "]", Message: "volume not found"}
}
