package mutation

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"fizil"
)

// hexPrefix marks a dictionary value as hex-encoded binary rather than a
// literal UTF-8 string, the way oracle/pyssz represents binary payloads
// as JSON-safe strings.
const hexPrefix = "hex:"

// Dictionary is a set of named byte tokens usable by the dictionary
// overwrite/insert strategies. Order is preserved from the source file;
// strategies iterate it in that order so runs stay deterministic.
type Dictionary []Token

// Token is one dictionary entry.
type Token struct {
	Name  string
	Value []byte
}

// dictionaryFile is the on-disk JSON shape a dictionary file is loaded
// from: a flat array of {"name": ..., "value": ...} objects. value is
// either a literal UTF-8 string or, prefixed with "hex:", a hex-encoded
// byte string for tokens that are not valid UTF-8 on their own.
type dictionaryFile []struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func decodeTokenValue(raw string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(raw, hexPrefix); ok {
		decoded, err := hex.DecodeString(rest)
		if err != nil {
			return nil, fmt.Errorf("decode hex value %q: %w", raw, err)
		}
		return decoded, nil
	}
	return []byte(raw), nil
}

// Load reads a dictionary from a JSON file at path.
func Load(path string) (Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mutation: load dictionary: %w", err)
	}
	defer f.Close()

	var raw dictionaryFile
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, fmt.Errorf("mutation: parse dictionary %s: %w", path, err)
	}

	dict := make(Dictionary, 0, len(raw))
	for _, entry := range raw {
		if len(entry.Value) == 0 {
			continue
		}
		value, err := decodeTokenValue(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("mutation: dictionary token %q: %w", entry.Name, err)
		}
		dict = append(dict, Token{Name: entry.Name, Value: value})
	}
	return dict, nil
}

// DictionaryOverwrite returns a strategy that, for every token in dict,
// overwrites every position in the example where the token fits with
// the token's bytes.
func DictionaryOverwrite(dict Dictionary) Strategy {
	return func(example []byte) fizil.Stage {
		return newStage("dictionary overwrite", fizil.PerByte(len(dict)), func(out chan<- []byte) {
			for _, tok := range dict {
				if len(tok.Value) == 0 || len(tok.Value) > len(example) {
					continue
				}
				for pos := 0; pos <= len(example)-len(tok.Value); pos++ {
					buf := cloneBuf(example)
					copy(buf[pos:], tok.Value)
					out <- buf
				}
			}
		})
	}
}

// DictionaryInsert returns a strategy that, for every token in dict,
// splices the token's bytes into the example at every position without
// overwriting anything, growing the example by len(token) bytes.
func DictionaryInsert(dict Dictionary) Strategy {
	return func(example []byte) fizil.Stage {
		return newStage("dictionary insert", fizil.PerByte(len(dict)), func(out chan<- []byte) {
			for _, tok := range dict {
				if len(tok.Value) == 0 {
					continue
				}
				for pos := 0; pos <= len(example); pos++ {
					buf := make([]byte, 0, len(example)+len(tok.Value))
					buf = append(buf, example[:pos]...)
					buf = append(buf, tok.Value...)
					buf = append(buf, example[pos:]...)
					out <- buf
				}
			}
		})
	}
}
