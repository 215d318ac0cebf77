package values

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects how exported values are written.
type Format string

const (
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
	FormatForm   Format = "form"
	FormatPretty Format = "pretty"
)

// ParseFormat validates a format name. An empty name selects JSON.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatForm:
		return FormatForm, nil
	case FormatPretty:
		return FormatPretty, nil
	}
	return "", fmt.Errorf("values: unknown format %q", name)
}

// Encode writes a nested object in the requested format.
func Encode(format Format, nested map[string]any) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(nested)
	case FormatForm:
		return []byte(formEncode(nested)), nil
	case FormatPretty:
		return []byte(prettyPrint(nested)), nil
	case FormatJSON, "":
		return json.MarshalIndent(nested, "", "  ")
	}
	return nil, fmt.Errorf("values: unknown format %q", format)
}

func formEncode(nested map[string]any) string {
	out := url.Values{}
	for path, value := range Flatten(nested) {
		switch v := value.(type) {
		case []any:
			for _, item := range v {
				out.Add(path+"[]", fmt.Sprint(item))
			}
		case []string:
			for _, item := range v {
				out.Add(path+"[]", item)
			}
		case nil:
			out.Set(path, "")
		default:
			out.Set(path, fmt.Sprint(v))
		}
	}
	return out.Encode()
}

func prettyPrint(nested map[string]any) string {
	var b strings.Builder
	writePretty(&b, "", nested)
	return b.String()
}

func writePretty(b *strings.Builder, prefix string, value any) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		if len(keys) == 0 && prefix != "" {
			fmt.Fprintf(b, "%s={}\n", prefix)
		}
		for _, key := range keys {
			next := key
			if prefix != "" {
				next = prefix + "." + key
			}
			writePretty(b, next, v[key])
		}
	case []any:
		if len(v) == 0 {
			fmt.Fprintf(b, "%s=[]\n", prefix)
		}
		for idx, item := range v {
			writePretty(b, fmt.Sprintf("%s[%d]", prefix, idx), item)
		}
	case nil:
		fmt.Fprintf(b, "%s=\n", prefix)
	default:
		fmt.Fprintf(b, "%s=%v\n", prefix, v)
	}
}
