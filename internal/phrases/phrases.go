// Package phrases holds the vocabulary hint list passed to transcription
// providers to boost recognition of domain-specific terms: institution names,
// technical jargon, proper names that show up in the recordings.
//
// The list is static and disabled by default (config transcription.
// use_phrase_list); extend it per deployment.
package phrases

// domainPhrases is the built-in hint list. Add names, locations, or terms
// specific to the recordings this deployment handles.
var domainPhrases = []string{}

// List returns a copy of the phrase list so callers cannot mutate the
// built-in set.
func List() []string {
	out := make([]string, len(domainPhrases))
	copy(out, domainPhrases)
	return out
}
