package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	// Explanation is the general description printed by Format.
	Explanation string
	DocURL      string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Render Errors (E001-E039)
	// ============================================

	"E001": {
		Category:    CategoryRender,
		Message:     "Malformed tree node",
		Explanation: "A tree node violates a structural invariant, for example an element without a tag or a component without a render function. The render pass is aborted.",
		DocURL:      "https://livedom.dev/docs/errors/E001",
	},
	"E002": {
		Category:    CategoryRender,
		Message:     "Unknown node kind",
		Explanation: "The tree node has a kind the engine does not know how to realize.",
		DocURL:      "https://livedom.dev/docs/errors/E002",
	},
	"E003": {
		Category:    CategoryRender,
		Message:     "Mount point missing",
		Explanation: "Render and Patch need a live element to mount into.",
		DocURL:      "https://livedom.dev/docs/errors/E003",
	},
	"E004": {
		Category:    CategoryRender,
		Message:     "Patch base mismatch",
		Explanation: "The previous tree passed to Patch is not the tree that produced the live nodes under the mount point.",
		DocURL:      "https://livedom.dev/docs/errors/E004",
	},

	// ============================================
	// Hydration Errors (E040-E059)
	// ============================================

	"E040": {
		Category:    CategoryHydration,
		Message:     "Hydration mismatch: element type differs",
		Explanation: "The server-rendered element type doesn't match the tree description. The component renders differently in the two passes.",
		DocURL:      "https://livedom.dev/docs/errors/E040",
	},
	"E041": {
		Category:    CategoryHydration,
		Message:     "Hydration mismatch: text content differs",
		Explanation: "The server-rendered text doesn't match the concatenated text children of the tree description.",
		DocURL:      "https://livedom.dev/docs/errors/E041",
	},
	"E043": {
		Category:    CategoryHydration,
		Message:     "Hydration mismatch: missing node",
		Explanation: "A node exists in the tree description that is absent from the server markup, or vice versa.",
		DocURL:      "https://livedom.dev/docs/errors/E043",
	},
	"E045": {
		Category:    CategoryHydration,
		Message:     "Hydration mismatch: node count differs",
		Explanation: "Strict hydration requires one live node per top-level tree node after adjacent text is fused.",
		DocURL:      "https://livedom.dev/docs/errors/E045",
	},

	// ============================================
	// Interaction Errors (E060-E069)
	// ============================================

	"E060": {
		Category:    CategoryInteraction,
		Message:     "Interaction handler failed",
		Explanation: "An event handler panicked, returned an error or returned a future that rejected.",
		DocURL:      "https://livedom.dev/docs/errors/E060",
	},
	"E061": {
		Category:    CategoryInteraction,
		Message:     "Unsupported handler type",
		Explanation: "Event handlers must be func(), func(*dom.Event), func(*dom.Event) error, func(*dom.Event) bool or func(*dom.Event) sched.Awaitable.",
		DocURL:      "https://livedom.dev/docs/errors/E061",
	},

	// ============================================
	// Async Errors (E070-E079)
	// ============================================

	"E070": {
		Category:    CategoryAsync,
		Message:     "Async child failed",
		Explanation: "A deferred child of an Async container rejected.",
		DocURL:      "https://livedom.dev/docs/errors/E070",
	},
	"E071": {
		Category:    CategoryAsync,
		Message:     "Loop closed",
		Explanation: "Work was submitted to a scheduler loop that has been closed.",
		DocURL:      "https://livedom.dev/docs/errors/E071",
	},

	// ============================================
	// Chain Errors (E080-E099)
	// ============================================

	"E080": {
		Category:    CategoryChain,
		Message:     "Chain timeout",
		Explanation: "The reference handle never received a live node within the configured timeout.",
		DocURL:      "https://livedom.dev/docs/errors/E080",
	},
	"E081": {
		Category:    CategoryChain,
		Message:     "Chain target not recognized",
		Explanation: "Q accepts a live node, a slice of live nodes, a reference handle, a selector string or another chain.",
		DocURL:      "https://livedom.dev/docs/errors/E081",
	},
	"E082": {
		Category:    CategoryChain,
		Message:     "Invalid selector",
		Explanation: "The selector is neither a valid CSS selector nor a valid XPath expression.",
		DocURL:      "https://livedom.dev/docs/errors/E082",
	},

	// ============================================
	// Configuration Errors (E120-E139)
	// ============================================

	"E120": {
		Category:    CategoryConfig,
		Message:     "Invalid configuration file",
		Explanation: "The livedom configuration file is malformed.",
		DocURL:      "https://livedom.dev/docs/errors/E120",
	},
	"E121": {
		Category:    CategoryConfig,
		Message:     "Configuration not found",
		Explanation: "No livedom.json, livedom.yaml or livedom.yml was found.",
		DocURL:      "https://livedom.dev/docs/errors/E121",
	},
	"E122": {
		Category:    CategoryConfig,
		Message:     "Invalid configuration value",
		Explanation: "A configuration value is out of range or not recognized.",
		DocURL:      "https://livedom.dev/docs/errors/E122",
	},

	// ============================================
	// CLI Errors (E140-E159)
	// ============================================

	"E140": {
		Category:    CategoryCLI,
		Message:     "Invalid input",
		Explanation: "A command argument or input file could not be used.",
		DocURL:      "https://livedom.dev/docs/errors/E140",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
