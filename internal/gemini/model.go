package gemini

import "os"

// Gemini Model IDs
//
// | Model Name               | API Model ID               | Use Case                      |
// |--------------------------|----------------------------|-------------------------------|
// | Gemini 3 Pro Image       | gemini-3-pro-image-preview | Advanced image generation     |
// | Gemini 3 Flash (Preview) | gemini-3-flash-preview     | Best for speed + intelligence |
// | Gemini 2.5 Flash         | gemini-2.5-flash           | Stable, balanced performance  |
const (
	// ModelGemini3ProImage is for advanced image generation/edit.
	ModelGemini3ProImage = "gemini-3-pro-image-preview"

	// ModelGemini3FlashPreview is best for speed + intelligence. Used for
	// cheap text-only calls such as API key validation.
	ModelGemini3FlashPreview = "gemini-3-flash-preview"

	// ModelGemini25Flash is stable, balanced performance.
	ModelGemini25Flash = "gemini-2.5-flash"
)

// DefaultImageModel is the default model for image editing.
// Can be overridden via the GEMINI_MODEL environment variable.
const DefaultImageModel = ModelGemini3ProImage

// GetModelName returns the image model to use, resolved from:
// 1. GEMINI_MODEL environment variable (if set)
// 2. Default: gemini-3-pro-image-preview
func GetModelName() string {
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		return model
	}
	return DefaultImageModel
}
