package shell

import (
	"sort"
	"strings"
)

// Language maps a script language to the program that runs it.
type Language struct {
	Name        string
	Interpreter string
	Extension   string
}

// DefaultLanguages are the languages accepted by ExecuteScriptFromFile.
// Python runs under python3 since many systems no longer ship "python".
var DefaultLanguages = map[string]Language{
	"python":     {Name: "python", Interpreter: "python3", Extension: ".py"},
	"javascript": {Name: "javascript", Interpreter: "node", Extension: ".js"},
	"typescript": {Name: "typescript", Interpreter: "ts-node", Extension: ".ts"},
	"bash":       {Name: "bash", Interpreter: "bash", Extension: ".sh"},
	"fish":       {Name: "fish", Interpreter: "fish", Extension: ".fish"},
	"ruby":       {Name: "ruby", Interpreter: "ruby", Extension: ".rb"},
	"php":        {Name: "php", Interpreter: "php", Extension: ".php"},
	"perl":       {Name: "perl", Interpreter: "perl", Extension: ".pl"},
	"r":          {Name: "r", Interpreter: "Rscript", Extension: ".R"},
}

func lookupLanguage(languages map[string]Language, name string) (Language, bool) {
	lang, ok := languages[strings.ToLower(strings.TrimSpace(name))]
	return lang, ok
}

func languageNames(languages map[string]Language) []string {
	names := make([]string, 0, len(languages))
	for name := range languages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
