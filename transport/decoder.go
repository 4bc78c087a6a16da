package transport

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dop251/goja"

	"github.com/eddielth/sensor-gateway/logger"
)

// ScriptDecoder runs a JavaScript decode function over raw frame payloads.
// It exists for long-range nodes whose firmware predates the standard frame
// shape; the script maps whatever the node sends onto the common field set.
//
// The script must define:
//
//	function decode(payload) { return { nodeId: "...", temperature: 1.0, ... }; }
//
// Only called from Poll on the tick goroutine; goja runtimes are not
// goroutine-safe and no lock is taken.
type ScriptDecoder struct {
	vm     *goja.Runtime
	decode goja.Callable
}

// NewScriptDecoder compiles a decoder from inline code or, when code is
// empty, from a script file.
func NewScriptDecoder(code, path string) (*ScriptDecoder, error) {
	if code == "" && path == "" {
		return nil, fmt.Errorf("no decode script code or path provided")
	}
	if code == "" {
		scriptBytes, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to load decode script %s: %v", path, err)
		}
		code = string(scriptBytes)
	}

	vm := goja.New()

	// Helper functions available to scripts
	_ = vm.Set("log", func(msg string) {
		logger.Info("[JS] %s", msg)
	})
	_ = vm.Set("parseJSON", func(jsonStr string) interface{} {
		var data interface{}
		if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
			logger.Warn("failed to parse JSON in decode script: %v", err)
			return nil
		}
		return data
	})

	if _, err := vm.RunString(code); err != nil {
		return nil, fmt.Errorf("failed to run decode script: %v", err)
	}

	decodeFn, ok := goja.AssertFunction(vm.Get("decode"))
	if !ok {
		return nil, fmt.Errorf("decode script must define a decode function")
	}

	return &ScriptDecoder{vm: vm, decode: decodeFn}, nil
}

// Decode maps a raw payload onto the common frame field set
func (d *ScriptDecoder) Decode(payload []byte) (*framePayload, error) {
	result, err := d.decode(goja.Undefined(), d.vm.ToValue(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("decode script failed: %v", err)
	}
	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return nil, fmt.Errorf("decode script returned no result")
	}

	// Round-trip through JSON to apply the same field parsing as native frames
	raw, err := json.Marshal(result.Export())
	if err != nil {
		return nil, fmt.Errorf("decode script returned unserializable result: %v", err)
	}
	var fields framePayload
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode script result has wrong shape: %v", err)
	}
	return &fields, nil
}
