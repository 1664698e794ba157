package adapters

// NOTE: If build bloat becomes a concern for unused adapters
// look into build tags i.e. +build !nohttp

type BuiltInSourceType = string

const (
	HTTPSourceType BuiltInSourceType = "http"
	FileSourceType BuiltInSourceType = "file"
)

// RegisterBuiltins registers all built-in sources with the default registry
// or only the specific ones if keys are provided
func RegisterBuiltins(types ...BuiltInSourceType) {
	registerBuiltins(defaultRegistry, types...)
}

func registerBuiltins(r *Registry, types ...BuiltInSourceType) {
	if len(types) == 0 {
		types = []BuiltInSourceType{HTTPSourceType, FileSourceType}
	}

	for _, key := range types {
		switch key {
		case HTTPSourceType:
			r.Register(HTTPSourceType, NewHTTPFactory(defaultClient))
		case FileSourceType:
			r.Register(FileSourceType, newFileSource)
		}
	}
}
