package appconfig

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

var aliases = map[string]string{
	"script_args": KeyArgs,
	"error":       KeyErrorFile,
	"output":      KeyOutFile,
	"pid":         KeyPidFile,
	"cron":        "cron_restart",
	"interpreter": KeyExecInterp,
}

var interpreters = map[string]string{
	".sh":     "bash",
	".py":     "python",
	".rb":     "ruby",
	".coffee": "coffee",
	".php":    "php",
	".pl":     "perl",
	".js":     "node",
}

var camelBoundary = regexp.MustCompile(`[^A-Z][A-Z]`)

// Normalizer builds AppConfigs. The zero value uses DefaultResolver and the
// current directory as the base for relative paths.
type Normalizer struct {
	Resolver PathResolver
}

// Normalize is a shorthand for Normalizer{}.Normalize.
func Normalize(raw any) (AppConfig, error) {
	return Normalizer{}.Normalize(raw)
}

// Normalize accepts a script path or an option mapping and returns the
// canonical config. It never performs I/O beyond path resolution.
func (n Normalizer) Normalize(raw any) (AppConfig, error) {
	opts := AppConfig{}
	switch v := raw.(type) {
	case string:
		opts[KeyScript] = v
	case AppConfig:
		rename(opts, v)
	case map[string]any:
		rename(opts, v)
	case map[string]string:
		for k, val := range v {
			opts[canonicalKey(k)] = val
		}
	case nil:
	default:
		return nil, &ValidationError{Err: fmt.Errorf("%w: unsupported options type %T", ErrInvalidOptions, raw)}
	}

	script := opts.Script()
	if script == "" {
		return nil, &ValidationError{Field: KeyScript, Err: ErrMissingField}
	}

	if opts.Name() == "" {
		base := filepath.Base(script)
		opts[KeyName] = strings.TrimSuffix(base, filepath.Ext(base))
	}

	switch v := opts[KeyNodeArgs].(type) {
	case string:
		opts[KeyNodeArgs] = strings.Fields(v)
	case []string:
	case []any:
		list := make([]string, 0, len(v))
		for _, item := range v {
			list = append(list, fmt.Sprint(item))
		}
		opts[KeyNodeArgs] = list
	default:
		opts[KeyNodeArgs] = []string{}
	}

	if v, ok := opts[KeyArgs]; ok && v != nil {
		if _, isString := v.(string); !isString {
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, &ValidationError{Field: KeyArgs, Err: fmt.Errorf("%w: %v", ErrInvalidOptions, err)}
			}
			opts[KeyArgs] = string(encoded)
		}
	}

	if opts.ExecMode() == "" {
		switch {
		case opts.has(KeyExecuteCommand):
			opts[KeyExecMode] = ForkMode
		case opts.has(KeyInstances):
			opts[KeyExecMode] = ClusterMode
		default:
			opts[KeyExecMode] = ForkMode
		}
	}

	if opts.has(KeyExecuteCommand) && opts.Interpreter() == "" {
		if interp, ok := interpreters[filepath.Ext(script)]; ok {
			opts[KeyExecInterp] = interp
		} else {
			opts[KeyExecInterp] = "none"
		}
	}

	if rawArgs := stringList(opts[KeyRawArgs]); len(rawArgs) > 0 {
		for i, arg := range rawArgs {
			if arg != "--" {
				continue
			}
			encoded, _ := json.Marshal(append([]string{}, rawArgs[i+1:]...))
			opts[KeyArgs] = string(encoded)
			break
		}
	}

	cwd, _ := opts[KeyCwd].(string)
	if cwd == "" {
		cwd = "."
	}
	base, err := filepath.Abs(cwd)
	if err != nil {
		return nil, &ValidationError{Field: KeyCwd, Err: err}
	}

	resolver := n.Resolver
	if resolver == nil {
		resolver = DefaultResolver{}
	}
	app, err := resolver.ResolveAppPaths(opts, base)
	if err != nil {
		return nil, &ValidationError{Err: err}
	}
	return app, nil
}

func rename(dst AppConfig, src map[string]any) {
	for k, v := range src {
		dst[canonicalKey(k)] = v
	}
}

// canonicalKey converts camelCase to snake_case and applies the alias table.
func canonicalKey(key string) string {
	snake := camelBoundary.ReplaceAllStringFunc(key, func(s string) string {
		_, size := utf8.DecodeRuneInString(s)
		return s[:size] + "_" + strings.ToLower(s[size:])
	})
	if alias, ok := aliases[snake]; ok {
		return alias
	}
	return snake
}

func stringList(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return nil
	}
}
