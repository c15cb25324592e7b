// Package config handles vesper.toml VM runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"cuelang.org/go/cue/cuecontext"
)

// Config is the runtime-tunable knobs an embedder can set without
// touching Go code: initial heap budget, initial stack size, and
// whether the optional natives (gRPC, network-backed ports) are wired
// in at all.
type Config struct {
	Heap    HeapConfig    `toml:"heap"`
	Stack   StackConfig   `toml:"stack"`
	Natives NativesConfig `toml:"natives"`
	Log     LogConfig     `toml:"log"`

	// Dir is the directory containing the vesper.toml file, set at load
	// time.
	Dir string `toml:"-"`
}

type HeapConfig struct {
	InitialObjects int `toml:"initial-objects"`
}

type StackConfig struct {
	InitialSlots int `toml:"initial-slots"`
}

type NativesConfig struct {
	EnableGrpc         bool `toml:"enable-grpc"`
	EnableNetworkPorts bool `toml:"enable-network-ports"`
}

type LogConfig struct {
	Level    string `toml:"level"`
	FilePath string `toml:"file"`
}

// schema is the CUE schema every loaded Config is validated against
// before use, catching out-of-range heap/stack sizes at load time
// instead of at first allocation.
const schema = `
heap: "initial-objects"?: int & >=64
stack: "initial-slots"?: int & >=16
natives: {
	"enable-grpc"?: bool
	"enable-network-ports"?: bool
}
log: {
	level?: "debug" | "info" | "warn" | "error"
	file?: string
}
`

// Default returns a Config with the same defaults Load applies to the
// keys a vesper.toml leaves out. (Load fails if the file itself is
// missing.)
func Default() *Config {
	return &Config{
		Heap:  HeapConfig{InitialObjects: 4096},
		Stack: StackConfig{InitialSlots: 128},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads and validates a vesper.toml file from dir.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "vesper.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return parse(dir, data)
}

func parse(dir string, data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse error in vesper.toml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	cfg.Dir = abs
	return cfg, nil
}

// validate schema-checks cfg's TOML-visible fields against the embedded
// CUE schema. cuelang.org/go is used purely as a validator here, not as
// this package's own config language — the wire format stays TOML; CUE
// adds a structural out-of-range check a vesper.toml generated by
// tooling deserves just as much as a hand-authored one.
func validate(cfg *Config) error {
	ctx := cuecontext.New()
	schemaVal := ctx.CompileString(schema)
	if schemaVal.Err() != nil {
		return fmt.Errorf("internal error: config schema: %w", schemaVal.Err())
	}

	data := map[string]any{
		"heap":    map[string]any{"initial-objects": cfg.Heap.InitialObjects},
		"stack":   map[string]any{"initial-slots": cfg.Stack.InitialSlots},
		"natives": map[string]any{"enable-grpc": cfg.Natives.EnableGrpc, "enable-network-ports": cfg.Natives.EnableNetworkPorts},
		"log":     map[string]any{"level": cfg.Log.Level},
	}
	dataVal := ctx.Encode(data)
	unified := schemaVal.Unify(dataVal)
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("vesper.toml failed schema validation: %w", err)
	}
	return nil
}
