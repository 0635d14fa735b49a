package toolorch

import (
	"strings"

	"github.com/hectorcore/agentcore/pkg/agentcore"
)

// recoverArgs produces the mutated argument map a retry should use for
// the given error class, or reports that the class has no recovery
// strategy at all (spec §4.6). retryCount is the number of recovery
// attempts already made for this execution. origArgs is the invocation's
// original, unmutated arguments: file_not_found's three alternative
// paths are each derived from the original path, not compounded from
// the previous retry's substitution.
func recoverArgs(class agentcore.ToolErrorClass, args, origArgs map[string]interface{}, retryCount int) (map[string]interface{}, bool) {
	switch class {
	case agentcore.ToolErrorFileNotFound:
		return recoverFileNotFound(args, origArgs, retryCount)
	case agentcore.ToolErrorPermissionDenied:
		return recoverPermissionDenied(args)
	case agentcore.ToolErrorCommandFailed:
		return recoverCommandFailed(args)
	case agentcore.ToolErrorTimeout:
		return recoverTimeout(args)
	case agentcore.ToolErrorResourceExhausted:
		// The backoff sleep happens in the caller; the args are unchanged.
		return args, true
	default:
		return nil, false
	}
}

// recoverFileNotFound tries, one per retry and in order: the /lib/ sibling
// of a /src/ path, a .pyi sibling of a .py path, and a .backup suffix —
// the three deterministic alternatives named in §4.6.
func recoverFileNotFound(args, origArgs map[string]interface{}, retryCount int) (map[string]interface{}, bool) {
	origPath, _ := origArgs["path"].(string)
	if origPath == "" {
		return nil, false
	}

	var candidate string
	switch retryCount {
	case 0:
		if strings.Contains(origPath, "/src/") {
			candidate = strings.Replace(origPath, "/src/", "/lib/", 1)
		}
	case 1:
		if strings.HasSuffix(origPath, ".py") {
			candidate = strings.TrimSuffix(origPath, ".py") + ".pyi"
		}
	case 2:
		candidate = origPath + ".backup"
	}
	if candidate == "" || candidate == origPath {
		return nil, false
	}

	next := cloneArgs(args)
	next["path"] = candidate
	return next, true
}

func recoverPermissionDenied(args map[string]interface{}) (map[string]interface{}, bool) {
	command, _ := args["command"].(string)
	if command == "" || strings.HasPrefix(strings.TrimSpace(command), "sudo ") {
		return nil, false
	}
	next := cloneArgs(args)
	next["command"] = "sudo " + command
	return next, true
}

// commandSubstitutions are the small declarative rewrites §4.6 names for
// the command_failed class.
var commandSubstitutions = []struct {
	from string
	to   string
}{
	{"npm install", "yarn install"},
	{"pip install", "pip3 install"},
	{"python ", "python3 "},
}

func recoverCommandFailed(args map[string]interface{}) (map[string]interface{}, bool) {
	command, _ := args["command"].(string)
	if command == "" {
		return nil, false
	}
	for _, sub := range commandSubstitutions {
		if strings.Contains(command, sub.from) {
			next := cloneArgs(args)
			next["command"] = strings.Replace(command, sub.from, sub.to, 1)
			return next, true
		}
	}
	return nil, false
}

func recoverTimeout(args map[string]interface{}) (map[string]interface{}, bool) {
	next := cloneArgs(args)
	timeout := 60
	switch v := args["timeout"].(type) {
	case int:
		timeout = v
	case float64:
		timeout = int(v)
	}
	next["timeout"] = timeout * 2
	return next, true
}

func cloneArgs(args map[string]interface{}) map[string]interface{} {
	next := make(map[string]interface{}, len(args))
	for k, v := range args {
		next[k] = v
	}
	return next
}
