package cipher

import "sort"

var wordlists = map[string][]string{
	"common": {
		"the", "of", "and", "to", "in", "is", "you", "that", "it", "for", "on",
		"with", "as", "I", "this", "be", "at", "by", "not", "or", "are", "from",
	},
	"ctf": {
		"flag", "key", "password", "admin", "ctf", "root", "user", "solve", "secret",
	},
}

// Wordlist returns a copy of a built-in wordlist.
func Wordlist(name string) ([]string, bool) {
	words, ok := wordlists[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), words...), true
}

// WordlistNames lists the built-in wordlists.
func WordlistNames() []string {
	names := make([]string, 0, len(wordlists))
	for name := range wordlists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
