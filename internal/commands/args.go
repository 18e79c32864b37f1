package commands

import (
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
)

// ParseArgs maps free text onto def's options. Words of the form name:value
// or name=value set that option. Remaining words fill the required options in
// order; the Rest option collects every word left once it is reached.
// Quoted words stay together.
func ParseArgs(def Definition, text string) (map[string]string, error) {
	args := make(map[string]string)
	text = strings.TrimSpace(text)
	if text == "" {
		return args, nil
	}

	words, err := shellquote.Split(text)
	if err != nil {
		// Unbalanced quotes: fall back to plain whitespace splitting.
		words = strings.Fields(text)
	}

	var positional []string
	for _, w := range words {
		if name, value, ok := namedArg(def, w); ok {
			args[name] = value
			continue
		}
		positional = append(positional, w)
	}

	for _, o := range def.Options {
		if len(positional) == 0 {
			break
		}
		if _, set := args[o.Name]; set {
			continue
		}
		if !o.Required && !o.Rest {
			continue
		}
		if o.Rest {
			args[o.Name] = strings.Join(positional, " ")
			positional = nil
			break
		}
		args[o.Name] = positional[0]
		positional = positional[1:]
	}

	if len(positional) > 0 {
		return nil, fmt.Errorf("unexpected argument %q", positional[0])
	}
	return args, nil
}

func namedArg(def Definition, word string) (string, string, bool) {
	i := strings.IndexAny(word, ":=")
	if i <= 0 {
		return "", "", false
	}
	name := strings.ToLower(word[:i])
	if _, ok := def.Option(name); !ok {
		return "", "", false
	}
	return name, word[i+1:], true
}
