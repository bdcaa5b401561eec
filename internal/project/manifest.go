package project

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Manifest is a build or package file found in the tree.
type Manifest struct {
	Path      string `json:"path"`
	Ecosystem string `json:"ecosystem"`
	Name      string `json:"name,omitempty"`
	Version   string `json:"version,omitempty"`
}

type manifestParser func(data []byte) (name, version string, err error)

type manifestKind struct {
	ecosystem string
	parse     manifestParser
}

// manifestKinds are recognized by exact file name.
var manifestKinds = map[string]manifestKind{
	"go.mod":           {ecosystem: "go", parse: parseGoMod},
	"package.json":     {ecosystem: "npm", parse: parseJSONManifest},
	"composer.json":    {ecosystem: "composer", parse: parseJSONManifest},
	"Cargo.toml":       {ecosystem: "cargo", parse: parseCargo},
	"pyproject.toml":   {ecosystem: "python", parse: parsePyproject},
	"requirements.txt": {ecosystem: "python"},
	"setup.py":         {ecosystem: "python"},
	"Gemfile":          {ecosystem: "bundler"},
	"pom.xml":          {ecosystem: "maven"},
	"build.gradle":     {ecosystem: "gradle"},
	"build.gradle.kts": {ecosystem: "gradle"},
	"CMakeLists.txt":   {ecosystem: "cmake"},
	"Makefile":         {ecosystem: "make"},
	"DESCRIPTION":      {ecosystem: "r"},
}

const maxManifestBytes = 256 << 10

// readManifest identifies path's ecosystem and, where supported, extracts
// the package name and version. Parse failures leave them empty.
func readManifest(path, rel string, kind manifestKind) Manifest {
	m := Manifest{Path: rel, Ecosystem: kind.ecosystem}
	if kind.parse == nil {
		return m
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() > maxManifestBytes {
		return m
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return m
	}
	if name, version, err := kind.parse(data); err == nil {
		m.Name, m.Version = name, version
	}
	return m
}

func parseGoMod(data []byte) (string, string, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if rest, ok := strings.CutPrefix(line, "module"); ok && (rest == "" || rest[0] == ' ' || rest[0] == '\t') {
			return strings.Trim(strings.TrimSpace(rest), `"`), "", nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", "", err
	}
	return "", "", fmt.Errorf("no module directive")
}

func parseJSONManifest(data []byte) (string, string, error) {
	var doc struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", "", err
	}
	return doc.Name, doc.Version, nil
}

func parseCargo(data []byte) (string, string, error) {
	var doc struct {
		Package struct {
			Name    string `toml:"name"`
			Version string `toml:"version"`
		} `toml:"package"`
	}
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return "", "", err
	}
	return doc.Package.Name, doc.Package.Version, nil
}

func parsePyproject(data []byte) (string, string, error) {
	var doc struct {
		Project struct {
			Name    string `toml:"name"`
			Version string `toml:"version"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Name    string `toml:"name"`
				Version string `toml:"version"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return "", "", err
	}
	if doc.Project.Name != "" {
		return doc.Project.Name, doc.Project.Version, nil
	}
	return doc.Tool.Poetry.Name, doc.Tool.Poetry.Version, nil
}
