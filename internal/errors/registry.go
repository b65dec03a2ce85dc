package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Validation Errors (E001-E019)
	// ============================================

	"E001": {
		Category: CategoryValidation,
		Message:  "Invalid diagram ID",
		Detail:   "Diagram IDs may contain only letters, digits, hyphens, and underscores.",
		DocURL:   "https://easel.dev/docs/errors/E001",
	},
	"E002": {
		Category: CategoryValidation,
		Message:  "Empty diagram source",
		Detail:   "The diagram source is empty. Provide diagram text to render.",
		DocURL:   "https://easel.dev/docs/errors/E002",
	},
	"E003": {
		Category: CategoryValidation,
		Message:  "Unsupported output format",
		Detail:   "The requested output format is not supported. Use svg or png.",
		DocURL:   "https://easel.dev/docs/errors/E003",
	},
	"E004": {
		Category: CategoryValidation,
		Message:  "Diagram ID reserved",
		Detail:   "This ID collides with a reserved preview route and cannot be used.",
		DocURL:   "https://easel.dev/docs/errors/E004",
	},

	// ============================================
	// Render Errors (E020-E039)
	// ============================================

	"E020": {
		Category: CategoryRender,
		Message:  "Renderer not found",
		Detail:   "The diagram renderer is not installed or not in PATH.",
		DocURL:   "https://easel.dev/docs/errors/E020",
	},
	"E021": {
		Category: CategoryRender,
		Message:  "Render failed",
		Detail:   "The renderer exited with an error. The diagram source may be invalid.",
		DocURL:   "https://easel.dev/docs/errors/E021",
	},
	"E022": {
		Category: CategoryRender,
		Message:  "Renderer produced no output",
		Detail:   "The renderer exited successfully but wrote no output file.",
		DocURL:   "https://easel.dev/docs/errors/E022",
	},

	// ============================================
	// Workspace Errors (E040-E059)
	// ============================================

	"E040": {
		Category: CategoryWorkspace,
		Message:  "Diagram not found",
		Detail:   "No diagram with this ID exists in the workspace.",
		DocURL:   "https://easel.dev/docs/errors/E040",
	},
	"E041": {
		Category: CategoryWorkspace,
		Message:  "Workspace unavailable",
		Detail:   "The workspace directory could not be created or accessed.",
		DocURL:   "https://easel.dev/docs/errors/E041",
	},
	"E042": {
		Category: CategoryWorkspace,
		Message:  "Rendered artifact missing",
		Detail:   "The diagram has no rendered output yet. Render it first.",
		DocURL:   "https://easel.dev/docs/errors/E042",
	},

	// ============================================
	// Preview Errors (E060-E079)
	// ============================================

	"E060": {
		Category: CategoryPreview,
		Message:  "No free port in preview range",
		Detail:   "Every port in the preview range is in use. Close other previews or widen the range in easel.json.",
		DocURL:   "https://easel.dev/docs/errors/E060",
	},
	"E061": {
		Category: CategoryPreview,
		Message:  "Preview session not found",
		Detail:   "No live preview session is registered for this ID.",
		DocURL:   "https://easel.dev/docs/errors/E061",
	},

	// ============================================
	// Configuration Errors (E080-E099)
	// ============================================

	"E080": {
		Category: CategoryConfig,
		Message:  "Invalid easel.json",
		Detail:   "The easel.json configuration file is malformed.",
		DocURL:   "https://easel.dev/docs/errors/E080",
	},
	"E081": {
		Category: CategoryConfig,
		Message:  "Invalid port range",
		Detail:   "The preview port range is invalid. The low port must not exceed the high port, and both must be between 1 and 65535.",
		DocURL:   "https://easel.dev/docs/errors/E081",
	},

	// ============================================
	// Publish Errors (E100-E119)
	// ============================================

	"E100": {
		Category: CategoryPublish,
		Message:  "Publish bucket not configured",
		Detail:   "No S3 bucket is configured. Set publish.bucket in easel.json or pass --bucket.",
		DocURL:   "https://easel.dev/docs/errors/E100",
	},
	"E101": {
		Category: CategoryPublish,
		Message:  "Upload failed",
		Detail:   "The artifact could not be uploaded to the bucket.",
		DocURL:   "https://easel.dev/docs/errors/E101",
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
